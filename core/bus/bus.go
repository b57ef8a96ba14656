package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope is the tuple relayed across instances for one room broadcast.
type Envelope struct {
	// Room is the canonical room key the event targets.
	Room string `json:"room"`
	// Event is the outbound event name delivered to clients.
	Event string `json:"event"`
	// Payload is the JSON-encoded event body.
	Payload json.RawMessage `json:"payload"`
	// OriginInstance identifies the publishing server instance. Subscribers
	// skip envelopes from their own instance since those were already
	// delivered locally at publish time.
	OriginInstance string `json:"origin_instance"`
	// OriginSession identifies the session that triggered the broadcast,
	// when there is one. Used together with ExcludeSender.
	OriginSession string `json:"origin_session,omitempty"`
	// ExcludeSender drops delivery to the originating session.
	ExcludeSender bool `json:"exclude_sender,omitempty"`
}

// Handler consumes envelopes on the subscribing side. Handlers must not
// block: delivery to slow sessions is the room manager's problem, not the
// bus's.
type Handler func(Envelope)

// Bus relays room broadcasts to every server instance. Delivery is
// at-most-once and unordered across instances; within one instance's Publish
// calls, local delivery order matches call order.
type Bus interface {
	// Publish delivers the envelope to local subscribers synchronously and
	// relays it to other instances best-effort. A relay failure degrades to
	// local-only delivery and is never returned to the caller; only local
	// misconfiguration (no handler, bad envelope) can error.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe registers the handler receiving envelopes. One handler per
	// bus; the room manager is the only consumer.
	Subscribe(h Handler)

	// AddRoom registers cross-instance interest in a room, called when the
	// first local session joins it.
	AddRoom(room string)

	// RemoveRoom releases interest, called when the last local session
	// leaves.
	RemoveRoom(room string)
}

// channelPrefix namespaces the room channels on the shared store's pub/sub.
const channelPrefix = "fanout:room:"

// Channel returns the pub/sub channel name for a room key.
func Channel(room string) string {
	return channelPrefix + room
}

// RoomFromChannel recovers the room key from a pub/sub channel name.
func RoomFromChannel(channel string) (string, bool) {
	if len(channel) <= len(channelPrefix) || channel[:len(channelPrefix)] != channelPrefix {
		return "", false
	}
	return channel[len(channelPrefix):], true
}

func (e Envelope) validate() error {
	if e.Room == "" {
		return fmt.Errorf("%w: empty room", ErrInvalidEnvelope)
	}
	if e.Event == "" {
		return fmt.Errorf("%w: empty event", ErrInvalidEnvelope)
	}
	return nil
}
