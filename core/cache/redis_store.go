package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance, making cached
// entries visible to every server instance.
type RedisStore struct {
	client        redis.UniversalClient
	scanBatchSize int64
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithScanBatchSize sets the COUNT hint used when enumerating keys for
// prefix deletion. Larger batches mean fewer round trips on big keyspaces.
func WithScanBatchSize(n int) RedisStoreOption {
	return func(rs *RedisStore) {
		if n > 0 {
			rs.scanBatchSize = int64(n)
		}
	}
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	rs := &RedisStore{
		client:        client,
		scanBatchSize: 1000,
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs
}

func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := rs.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return val, nil
}

func (rs *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := rs.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (rs *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := rs.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// DeletePrefix scans the keyspace for prefix matches and deletes them in
// batches. Cost is proportional to the number of cached variants under the
// prefix; paginated listings keep this small in practice, but heavy fan-out
// workloads should watch this before it becomes a bottleneck.
func (rs *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := rs.client.Scan(ctx, cursor, prefix+"*", rs.scanBatchSize).Result()
		if err != nil {
			return removed, errors.Join(ErrStoreUnavailable, err)
		}

		if len(keys) > 0 {
			if err := rs.client.Del(ctx, keys...).Err(); err != nil {
				return removed, errors.Join(ErrStoreUnavailable, err)
			}
			removed += len(keys)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
