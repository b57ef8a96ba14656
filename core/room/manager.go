package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hivechat/realtime/core/bus"
	"github.com/hivechat/realtime/core/event"
	"github.com/hivechat/realtime/pkg/logger"
)

// Member is a live session from the manager's point of view. Deliver must
// not block: implementations enqueue to a bounded buffer and drop on
// overflow rather than stalling the fan-out path.
type Member interface {
	SessionID() uuid.UUID
	Deliver(eventName string, payload json.RawMessage)
}

// Manager tracks which local sessions belong to which rooms and performs
// in/out-of-room broadcast through the fan-out bus.
//
// The registry here covers this instance only; membership across instances
// is implicit in each instance's bus subscriptions. Join and Leave carry set
// semantics: duplicate joins and leaves of non-members are no-ops.
type Manager struct {
	b   bus.Bus
	log *slog.Logger

	mu sync.RWMutex
	// rooms holds local members per room key.
	rooms map[string]map[uuid.UUID]Member
	// memberships is the reverse index, session -> joined room keys.
	memberships map[uuid.UUID]map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for delivery diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a room manager wired to the given bus. The manager
// registers itself as the bus's envelope handler.
func NewManager(b bus.Bus, opts ...Option) *Manager {
	m := &Manager{
		b:           b,
		log:         logger.Discard(),
		rooms:       make(map[string]map[uuid.UUID]Member),
		memberships: make(map[uuid.UUID]map[string]struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	b.Subscribe(m.deliver)
	return m
}

// Join adds sess to the room. A no-op if already a member. The first local
// member registers cross-instance interest in the room with the bus.
func (m *Manager) Join(sess Member, roomKey string) error {
	if roomKey == "" {
		return ErrEmptyRoom
	}

	id := sess.SessionID()

	m.mu.Lock()
	members, ok := m.rooms[roomKey]
	if !ok {
		members = make(map[uuid.UUID]Member)
		m.rooms[roomKey] = members
	}
	if _, already := members[id]; already {
		m.mu.Unlock()
		return nil
	}
	members[id] = sess

	joined, ok := m.memberships[id]
	if !ok {
		joined = make(map[string]struct{})
		m.memberships[id] = joined
	}
	joined[roomKey] = struct{}{}
	first := len(members) == 1
	m.mu.Unlock()

	if first {
		m.b.AddRoom(roomKey)
	}
	return nil
}

// Leave removes sess from the room. A no-op if not a member. The last local
// member releases the room's bus subscription.
func (m *Manager) Leave(sess Member, roomKey string) {
	id := sess.SessionID()

	m.mu.Lock()
	members, ok := m.rooms[roomKey]
	if !ok {
		m.mu.Unlock()
		return
	}
	if _, member := members[id]; !member {
		m.mu.Unlock()
		return
	}
	delete(members, id)
	last := len(members) == 0
	if last {
		delete(m.rooms, roomKey)
	}

	if joined, ok := m.memberships[id]; ok {
		delete(joined, roomKey)
		if len(joined) == 0 {
			delete(m.memberships, id)
		}
	}
	m.mu.Unlock()

	if last {
		m.b.RemoveRoom(roomKey)
	}
}

// LeaveAll removes sess from every room it joined and returns the released
// room keys. Called on disconnect; afterwards the session holds zero
// memberships anywhere.
func (m *Manager) LeaveAll(sess Member) []string {
	id := sess.SessionID()

	m.mu.Lock()
	joined := m.memberships[id]
	delete(m.memberships, id)

	released := make([]string, 0, len(joined))
	emptied := make([]string, 0, len(joined))
	for roomKey := range joined {
		released = append(released, roomKey)
		if members, ok := m.rooms[roomKey]; ok {
			delete(members, id)
			if len(members) == 0 {
				delete(m.rooms, roomKey)
				emptied = append(emptied, roomKey)
			}
		}
	}
	m.mu.Unlock()

	for _, roomKey := range emptied {
		m.b.RemoveRoom(roomKey)
	}
	return released
}

// Rooms returns a snapshot of the room keys sess has joined.
func (m *Manager) Rooms(sess Member) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	joined := m.memberships[sess.SessionID()]
	keys := make([]string, 0, len(joined))
	for roomKey := range joined {
		keys = append(keys, roomKey)
	}
	return keys
}

// IsMember reports whether sess currently belongs to the room on this
// instance.
func (m *Manager) IsMember(sess Member, roomKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.memberships[sess.SessionID()][roomKey]
	return ok
}

// LocalMembers returns the number of local sessions in the room.
func (m *Manager) LocalMembers(roomKey string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[roomKey])
}

// BroadcastOption adjusts one broadcast.
type BroadcastOption func(*broadcastOptions)

type broadcastOptions struct {
	sender        uuid.UUID
	hasSender     bool
	excludeSender bool
	policySet     bool
}

// WithSender marks the originating session. Whether the sender receives its
// own broadcast follows the event policy unless overridden.
func WithSender(sessionID uuid.UUID) BroadcastOption {
	return func(o *broadcastOptions) {
		o.sender = sessionID
		o.hasSender = true
	}
}

// WithExcludeSender overrides the per-event policy for this broadcast.
func WithExcludeSender(exclude bool) BroadcastOption {
	return func(o *broadcastOptions) {
		o.excludeSender = exclude
		o.policySet = true
	}
}

// Broadcast delivers out to every session in the room on every instance.
// Broadcasting to a room with no members anywhere is a successful no-op.
func (m *Manager) Broadcast(ctx context.Context, roomKey string, out event.Outbound, opts ...BroadcastOption) error {
	if roomKey == "" {
		return ErrEmptyRoom
	}

	var o broadcastOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.policySet {
		o.excludeSender = ExcludesSender(out.Name)
	}

	payload, err := out.MarshalPayload()
	if err != nil {
		return err
	}

	env := bus.Envelope{
		Room:          roomKey,
		Event:         out.Name,
		Payload:       payload,
		ExcludeSender: o.excludeSender,
	}
	if o.hasSender {
		env.OriginSession = o.sender.String()
	}

	return m.b.Publish(ctx, env)
}

// deliver fans an envelope out to this instance's members of the room.
// Runs for both locally published and relayed envelopes.
func (m *Manager) deliver(env bus.Envelope) {
	m.mu.RLock()
	members := m.rooms[env.Room]
	targets := make([]Member, 0, len(members))
	for id, member := range members {
		if env.ExcludeSender && env.OriginSession == id.String() {
			continue
		}
		targets = append(targets, member)
	}
	m.mu.RUnlock()

	for _, member := range targets {
		member.Deliver(env.Event, env.Payload)
	}
}
