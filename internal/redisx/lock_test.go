package redisx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOwnerLockerExcludesSameOwner(t *testing.T) {
	_, rdb := newTestClient(t)
	l := NewOwnerLocker(rdb, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user-1")
	assert.True(t, errors.Is(err, ErrLockHeld))

	// other owners are unaffected
	releaseOther, err := l.Acquire(ctx, "user-2")
	require.NoError(t, err)
	require.NoError(t, releaseOther(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestOwnerLockerExpires(t *testing.T) {
	mr, rdb := newTestClient(t)
	l := NewOwnerLocker(rdb, 5*time.Second)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestReleaseDoesNotDeleteForeignToken(t *testing.T) {
	mr, rdb := newTestClient(t)
	l := NewOwnerLocker(rdb, 5*time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	// first holder expired, second took over
	mr.FastForward(6 * time.Second)
	_, err = l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists(fmt.Sprintf(KeyCheckoutLock, "user-1")))
}

func TestExists(t *testing.T) {
	mr, rdb := newTestClient(t)
	ctx := context.Background()

	ok, err := Exists(ctx, rdb, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set("k", "v"))
	ok, err = Exists(ctx, rdb, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
