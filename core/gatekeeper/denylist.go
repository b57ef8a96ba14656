package gatekeeper

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Denylist answers whether a credential's token ID has been revoked before
// its natural expiry. A lookup error means revocation cannot be verified and
// authentication fails closed.
type Denylist interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const denylistPrefix = "revoked_token:"

// RedisDenylist checks revocations against keys written by the session
// service on logout. Entries carry a TTL matching the token's remaining
// lifetime, so the set stays bounded.
type RedisDenylist struct {
	client redis.UniversalClient
}

func NewRedisDenylist(client redis.UniversalClient) *RedisDenylist {
	return &RedisDenylist{client: client}
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, denylistPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("denylist lookup: %w", err)
	}
	return n > 0, nil
}

// MemoryDenylist is an in-process Denylist for tests and single-instance use.
type MemoryDenylist struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]struct{})}
}

// Revoke marks a token ID as revoked.
func (d *MemoryDenylist) Revoke(tokenID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = struct{}{}
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}
