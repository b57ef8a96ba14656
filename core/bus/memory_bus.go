package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBroker connects MemoryBus instances in one process, standing in for
// the shared store's pub/sub in tests and single-binary deployments.
type MemoryBroker struct {
	mu    sync.RWMutex
	buses []*MemoryBus
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

func (br *MemoryBroker) attach(b *MemoryBus) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.buses = append(br.buses, b)
}

func (br *MemoryBroker) relay(env Envelope) {
	br.mu.RLock()
	defer br.mu.RUnlock()
	for _, b := range br.buses {
		b.deliverRemote(env)
	}
}

// MemoryBus is the in-process Bus implementation. Without a broker it
// delivers locally only; with one, envelopes reach every attached bus,
// mirroring the cross-instance relay.
type MemoryBus struct {
	instanceID string
	broker     *MemoryBroker

	mu      sync.Mutex
	handler Handler
	rooms   map[string]struct{}
}

// NewMemoryBus creates an in-process bus. A nil broker means local-only
// delivery.
func NewMemoryBus(broker *MemoryBroker) *MemoryBus {
	b := &MemoryBus{
		instanceID: uuid.NewString(),
		broker:     broker,
		rooms:      make(map[string]struct{}),
	}
	if broker != nil {
		broker.attach(b)
	}
	return b
}

// InstanceID returns this bus's instance identifier.
func (b *MemoryBus) InstanceID() string {
	return b.instanceID
}

func (b *MemoryBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

func (b *MemoryBus) Publish(ctx context.Context, env Envelope) error {
	if err := env.validate(); err != nil {
		return err
	}
	env.OriginInstance = b.instanceID

	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		return ErrNoHandler
	}

	handler(env)

	if b.broker != nil {
		b.broker.relay(env)
	}
	return nil
}

// deliverRemote mirrors the redis subscription path: envelopes from this
// instance are skipped, and delivery requires both a handler and local
// interest in the room.
func (b *MemoryBus) deliverRemote(env Envelope) {
	if env.OriginInstance == b.instanceID {
		return
	}

	b.mu.Lock()
	handler := b.handler
	_, interested := b.rooms[env.Room]
	b.mu.Unlock()

	if handler == nil || !interested {
		return
	}
	handler(env)
}

func (b *MemoryBus) AddRoom(room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[room] = struct{}{}
}

func (b *MemoryBus) RemoveRoom(room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, room)
}
