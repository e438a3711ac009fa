package domain

import (
	"context"
	"time"
)

// PriceCache stores display prices keyed by mint. It is advisory only; the
// trigger path never reads from it.
type PriceCache interface {
	SetPrice(ctx context.Context, mint string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, mint string) (float64, time.Time, error)
}

// LockManager provides best-effort distributed locks. The engine uses one
// around scheduler ticks so that concurrent instances do not duplicate quote
// traffic; correctness never depends on it — the OrderStore claim does that.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned function
	// releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds how often an action may run for a key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
