package gatekeeper

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hivechat/realtime/core/event"
)

// Frame is a single outbound wire message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Session is one authenticated connection. It holds a snapshot of the user's
// public profile taken at handshake time and a bounded outbox drained by the
// connection's write loop.
//
// Deliver never blocks: when the outbox is full the frame is dropped and
// counted. A client that cannot keep up loses events rather than stalling
// fan-out for everyone else.
type Session struct {
	id          uuid.UUID
	userID      string
	username    string
	connectedAt time.Time

	outbox    chan Frame
	closed    chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

func newSession(userID, username string, buffer int) *Session {
	return &Session{
		id:          uuid.New(),
		userID:      userID,
		username:    username,
		connectedAt: time.Now().UTC(),
		outbox:      make(chan Frame, buffer),
		closed:      make(chan struct{}),
	}
}

// SessionID returns the unique ID of this connection. A user connected from
// two devices holds two sessions with distinct IDs.
func (s *Session) SessionID() uuid.UUID { return s.id }

// UserID returns the authenticated user's ID.
func (s *Session) UserID() string { return s.userID }

// Username returns the profile snapshot taken at handshake time.
func (s *Session) Username() string { return s.username }

// ConnectedAt returns when the session was established.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// Deliver enqueues a frame for the write loop. Frames sent to a closed or
// saturated session are dropped.
func (s *Session) Deliver(eventName string, payload json.RawMessage) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.outbox <- Frame{Event: eventName, Data: payload}:
	default:
		s.dropped.Add(1)
	}
}

// Emit marshals and delivers an outbound event directly to this session.
func (s *Session) Emit(out event.Outbound) error {
	payload, err := out.MarshalPayload()
	if err != nil {
		return err
	}
	s.Deliver(out.Name, payload)
	return nil
}

// Outbox is drained by the connection's write loop.
func (s *Session) Outbox() <-chan Frame { return s.outbox }

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Dropped reports how many frames were discarded due to a full outbox.
func (s *Session) Dropped() int64 { return s.dropped.Load() }

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
