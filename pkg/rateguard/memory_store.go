package rateguard

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore implements Store in process memory. Counters recorded here are
// invisible to other instances; use RedisStore in multi-instance deployments.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// NewMemoryStore creates an empty in-memory store. Expired counters are
// collected lazily on access.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
	}
}

func (ms *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		return 0, 0, ErrInvalidWindow
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	c, ok := ms.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		ms.counters[key] = c
	}

	c.count++
	return c.count, c.expiresAt.Sub(now), nil
}

func (ms *MemoryStore) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	c, ok := ms.counters[key]
	if !ok {
		return 0, 0, nil
	}
	if now.After(c.expiresAt) {
		delete(ms.counters, key)
		return 0, 0, nil
	}

	return c.count, c.expiresAt.Sub(now), nil
}

func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.counters, key)
	return nil
}
