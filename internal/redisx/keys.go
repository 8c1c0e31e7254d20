package redisx

import "time"

const (
	// Per-owner checkout lock: lock:checkout:{owner} -> random token
	KeyCheckoutLock = "lock:checkout:%s"

	// Cached order body: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)
