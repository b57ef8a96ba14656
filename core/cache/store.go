package cache

import (
	"context"
	"time"
)

// Store is the backing key/value store for the cache-aside layer.
// Implementations must handle concurrent access safely.
type Store interface {
	// Get returns the value for key, or ErrCacheMiss if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A non-positive TTL is
	// invalid; every cache entry must expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix enumerates and removes every key starting with prefix,
	// returning the number of keys removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
