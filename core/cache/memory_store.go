package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore implements Store in process memory. It serves tests and
// single-instance deployments; cross-instance coherence requires RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
// Expired entries are dropped lazily on read and during prefix scans.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	entry, ok := ms.entries[key]
	ms.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}

	if entry.expired(time.Now()) {
		ms.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := ms.entries[key]; ok && cur.expired(time.Now()) {
			delete(ms.entries, key)
		}
		ms.mu.Unlock()
		return nil, ErrCacheMiss
	}

	return entry.value, nil
}

func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (ms *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, key := range keys {
		delete(ms.entries, key)
	}
	return nil
}

func (ms *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range ms.entries {
		if strings.HasPrefix(key, prefix) {
			delete(ms.entries, key)
			if !entry.expired(now) {
				removed++
			}
		}
	}
	return removed, nil
}

// Len returns the number of entries currently held, including not yet
// collected expired ones. Intended for tests and observability.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.entries)
}
