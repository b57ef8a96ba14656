package rateguard

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis so attempt counters are shared across
// all server instances. INCR gives the required atomicity; the window TTL is
// attached only when the counter is created.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (rs *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		return 0, 0, ErrInvalidWindow
	}

	pipe := rs.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX keeps the original window when the counter already exists, so the
	// window is fixed from the first failure, not sliding.
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}

	return incr.Val(), ttl.Val(), nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	pipe := rs.client.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}

	count, err := get.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}

	return count, ttl.Val(), nil
}

func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
