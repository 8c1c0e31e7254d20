package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock already held")

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OwnerLocker hands out short-lived exclusive locks keyed by owner identity.
type OwnerLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOwnerLocker(rdb *redis.Client, ttl time.Duration) *OwnerLocker {
	return &OwnerLocker{rdb: rdb, ttl: ttl}
}

// Acquire takes the checkout lock for owner. It fails with ErrLockHeld if
// another holder has it; the lock expires on its own after the TTL.
func (l *OwnerLocker) Acquire(ctx context.Context, owner string) (release func(context.Context) error, err error) {
	key := fmt.Sprintf(KeyCheckoutLock, owner)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}, nil
}
