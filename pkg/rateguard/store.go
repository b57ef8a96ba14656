package rateguard

import (
	"context"
	"time"
)

// Store persists fixed-window attempt counters. Implementations must handle
// concurrent access safely; Incr in particular must be atomic so that two
// instances recording failures for the same actor never lose a count.
type Store interface {
	// Incr increments the counter for key, creating it with TTL = window on
	// first increment. Returns the new count and the window's remaining TTL.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)

	// Get returns the current count and remaining TTL for key without
	// modifying it. A missing or expired counter reports count 0.
	Get(ctx context.Context, key string) (count int64, remaining time.Duration, err error)

	// Delete removes the counter for key, resetting the window.
	Delete(ctx context.Context, key string) error
}
