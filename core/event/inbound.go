package event

import (
	"encoding/json"
	"fmt"
)

// Inbound event names accepted from clients.
const (
	NameJoinRoom     = "joinRoom"
	NameLeaveRoom    = "leaveRoom"
	NameSendMessage  = "sendMessage"
	NameTypingStart  = "typing:start"
	NameTypingStop   = "typing:stop"
	NameStatusUpdate = "status:update"
	NameVoiceJoin    = "voice:join"
	NameVoiceLeave   = "voice:leave"
	NameVoiceSignal  = "voice:signal"
)

// Inbound is the tagged variant for client events. Exactly the structs below
// implement it; anything not matching a known variant is rejected at decode
// time.
type Inbound interface {
	// EventName returns the wire name of the variant.
	EventName() string
}

// JoinRoom asks to join the room derived from Kind and ID.
type JoinRoom struct {
	Kind string `json:"roomType"`
	ID   string `json:"roomId"`
}

func (JoinRoom) EventName() string { return NameJoinRoom }

func (ev JoinRoom) validate() error {
	return requireFields(field{"roomType", ev.Kind}, field{"roomId", ev.ID})
}

// LeaveRoom asks to leave the room derived from Kind and ID.
type LeaveRoom struct {
	Kind string `json:"roomType"`
	ID   string `json:"roomId"`
}

func (LeaveRoom) EventName() string { return NameLeaveRoom }

func (ev LeaveRoom) validate() error {
	return requireFields(field{"roomType", ev.Kind}, field{"roomId", ev.ID})
}

// SendMessage carries a message for a channel. Persistence is the CRUD
// layer's job; this subsystem only validates shape and broadcasts the result.
type SendMessage struct {
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
	// Nonce is echoed back in the broadcast so the sending client can
	// reconcile its optimistic copy.
	Nonce string `json:"nonce,omitempty"`
}

func (SendMessage) EventName() string { return NameSendMessage }

func (ev SendMessage) validate() error {
	return requireFields(field{"channelId", ev.ChannelID}, field{"content", ev.Content})
}

// TypingStart signals the actor started typing in a channel.
type TypingStart struct {
	ChannelID string `json:"channelId"`
}

func (TypingStart) EventName() string { return NameTypingStart }

func (ev TypingStart) validate() error {
	return requireFields(field{"channelId", ev.ChannelID})
}

// TypingStop signals the actor stopped typing in a channel.
type TypingStop struct {
	ChannelID string `json:"channelId"`
}

func (TypingStop) EventName() string { return NameTypingStop }

func (ev TypingStop) validate() error {
	return requireFields(field{"channelId", ev.ChannelID})
}

// Presence status values for StatusUpdate.
const (
	StatusOnline  = "online"
	StatusIdle    = "idle"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

// StatusUpdate changes the actor's presence status.
type StatusUpdate struct {
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
}

func (StatusUpdate) EventName() string { return NameStatusUpdate }

func (ev StatusUpdate) validate() error {
	if err := requireFields(field{"status", ev.Status}); err != nil {
		return err
	}
	switch ev.Status {
	case StatusOnline, StatusIdle, StatusBusy, StatusOffline:
		return nil
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidField, ev.Status)
	}
}

// VoiceJoin asks to join a voice room.
type VoiceJoin struct {
	ChannelID string `json:"channelId"`
}

func (VoiceJoin) EventName() string { return NameVoiceJoin }

func (ev VoiceJoin) validate() error {
	return requireFields(field{"channelId", ev.ChannelID})
}

// VoiceLeave asks to leave a voice room.
type VoiceLeave struct {
	ChannelID string `json:"channelId"`
}

func (VoiceLeave) EventName() string { return NameVoiceLeave }

func (ev VoiceLeave) validate() error {
	return requireFields(field{"channelId", ev.ChannelID})
}

// VoiceSignal relays a WebRTC signaling payload to one peer. It is delivered
// to the target user's personal room only, never broadcast to the voice room.
type VoiceSignal struct {
	ChannelID    string          `json:"channelId"`
	TargetUserID string          `json:"targetUserId"`
	Signal       json.RawMessage `json:"signal"`
}

func (VoiceSignal) EventName() string { return NameVoiceSignal }

func (ev VoiceSignal) validate() error {
	if err := requireFields(field{"channelId", ev.ChannelID}, field{"targetUserId", ev.TargetUserID}); err != nil {
		return err
	}
	if len(ev.Signal) == 0 {
		return fmt.Errorf("%w: signal", ErrMissingField)
	}
	return nil
}

// frame is the wire envelope for inbound events.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type inboundVariant interface {
	Inbound
	validate() error
}

func decodeAs[T inboundVariant](data []byte) (Inbound, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// DecodeInbound parses a raw client frame into its typed variant, validating
// required fields. Unknown event names return ErrUnknownEvent; missing
// required fields return ErrMissingField.
func DecodeInbound(raw []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("%w: event", ErrMissingField)
	}

	data := f.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	switch f.Event {
	case NameJoinRoom:
		return decodeAs[JoinRoom](data)
	case NameLeaveRoom:
		return decodeAs[LeaveRoom](data)
	case NameSendMessage:
		return decodeAs[SendMessage](data)
	case NameTypingStart:
		return decodeAs[TypingStart](data)
	case NameTypingStop:
		return decodeAs[TypingStop](data)
	case NameStatusUpdate:
		return decodeAs[StatusUpdate](data)
	case NameVoiceJoin:
		return decodeAs[VoiceJoin](data)
	case NameVoiceLeave:
		return decodeAs[VoiceLeave](data)
	case NameVoiceSignal:
		return decodeAs[VoiceSignal](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

type field struct {
	name  string
	value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}
