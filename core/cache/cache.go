package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hivechat/realtime/pkg/logger"
)

// Cache is the read-through, write-invalidate layer over a Store.
//
// Reads populate the cache on miss; every mutation elsewhere in the system is
// expected to invalidate the affected keys through the invalidation
// coordinator. The layer fails open: when the store is unreachable, reads
// miss and loaders hit the source of truth directly, so correctness never
// depends on cache availability.
type Cache struct {
	store  Store
	log    *slog.Logger
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for degradation events.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a cache-aside layer over the given store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		log:   logger.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the cached value for key. A store failure is reported as a
// miss so the caller falls through to the source of truth.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.WarnContext(ctx, "cache read degraded to miss",
				logger.CacheKey(key), logger.Error(err))
		}
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return val, true
}

// GetOrLoad returns the cached value for key, invoking loader on miss and
// caching its result with the given TTL. Concurrent misses for the same key
// share a single loader call.
//
// A returned value is at most ttl old relative to the last invalidation of
// its key. The race between a concurrent write's invalidation and this
// populate is accepted and bounded by ttl, not locked against.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if val, ok := c.Get(ctx, key); ok {
		return val, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have populated the key while we queued.
		if val, err := c.store.Get(ctx, key); err == nil {
			return val, nil
		}

		val, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.store.Set(ctx, key, val, ttl); err != nil {
			c.log.WarnContext(ctx, "cache populate failed, serving uncached",
				logger.CacheKey(key), logger.Error(err))
		}
		return val, nil
	})
	if err != nil {
		return nil, err
	}

	return val.([]byte), nil
}

// Set stores a value directly. Used by callers that already hold the
// canonical record after a write and want to warm the cache.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.Set(ctx, key, value, ttl)
}

// Invalidate deletes the given exact keys. Store failures are logged, never
// returned: by the time invalidation runs the underlying write is durable,
// and stale entries expire with their TTL anyway.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.log.ErrorContext(ctx, "cache invalidation failed, stale entries bounded by ttl",
			logger.Key("keys", keys), logger.Error(err))
	}
}

// InvalidatePrefix deletes every key under prefix. Used for parameterized
// listings cached per page, where one mutation must drop all pages.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	removed, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		c.log.ErrorContext(ctx, "cache prefix invalidation failed, stale entries bounded by ttl",
			logger.CacheKey(prefix), logger.Error(err))
		return
	}
	if removed > 0 {
		c.log.DebugContext(ctx, "cache prefix invalidated",
			logger.CacheKey(prefix), logger.Count("removed", removed))
	}
}

// Stats reports hit/miss counters for observability.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
