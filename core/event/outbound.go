package event

import (
	"encoding/json"
	"time"
)

// Outbound event names delivered to clients.
const (
	NameNewMessage        = "newMessage"
	NameMessageUpdated    = "messageUpdated"
	NameMessageDeleted    = "messageDeleted"
	NameUserTyping        = "user:typing"
	NameUserStoppedTyping = "user:stoppedTyping"
	NameUserStatusUpdated = "user:statusUpdated"
	NameMemberJoined      = "member:joined"
	NameMemberLeft        = "member:left"
	NameRoleUpdated       = "roleUpdated"
	NameVoicePeerJoined   = "voice:peerJoined"
	NameVoicePeerLeft     = "voice:peerLeft"
	NameError             = "error"
)

// Actor is the minimal identity attached to outbound events.
type Actor struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// Outbound pairs an event name with its payload, ready for broadcast or
// direct delivery to a session.
type Outbound struct {
	Name    string
	Payload any
}

// MarshalPayload encodes the payload as JSON for the wire.
func (o Outbound) MarshalPayload() (json.RawMessage, error) {
	return json.Marshal(o.Payload)
}

// Frame encodes the full outbound wire frame {event, data}.
func (o Outbound) Frame() ([]byte, error) {
	payload, err := o.MarshalPayload()
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: o.Name, Data: payload})
}

// NewMessagePayload carries a persisted message record to room members.
type NewMessagePayload struct {
	ChannelID string          `json:"channelId"`
	Message   json.RawMessage `json:"message"`
	Actor     Actor           `json:"actor"`
	Nonce     string          `json:"nonce,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage builds the broadcast for a freshly persisted message. The
// message argument is the canonical record returned by the persistence layer.
func NewMessage(actor Actor, channelID string, message json.RawMessage, nonce string) Outbound {
	return Outbound{Name: NameNewMessage, Payload: NewMessagePayload{
		ChannelID: channelID,
		Message:   message,
		Actor:     actor,
		Nonce:     nonce,
		Timestamp: time.Now().UTC(),
	}}
}

// MessageChangedPayload carries an edited or deleted message reference.
type MessageChangedPayload struct {
	ChannelID string          `json:"channelId"`
	MessageID string          `json:"messageId"`
	Message   json.RawMessage `json:"message,omitempty"`
	Actor     Actor           `json:"actor"`
	Timestamp time.Time       `json:"timestamp"`
}

// MessageUpdated builds the broadcast for an edited message.
func MessageUpdated(actor Actor, channelID, messageID string, message json.RawMessage) Outbound {
	return Outbound{Name: NameMessageUpdated, Payload: MessageChangedPayload{
		ChannelID: channelID,
		MessageID: messageID,
		Message:   message,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// MessageDeleted builds the broadcast for a removed message.
func MessageDeleted(actor Actor, channelID, messageID string) Outbound {
	return Outbound{Name: NameMessageDeleted, Payload: MessageChangedPayload{
		ChannelID: channelID,
		MessageID: messageID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// TypingPayload carries transient typing signals.
type TypingPayload struct {
	ChannelID string    `json:"channelId"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTyping builds the transient typing-started signal.
func UserTyping(actor Actor, channelID string) Outbound {
	return Outbound{Name: NameUserTyping, Payload: TypingPayload{
		ChannelID: channelID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// UserStoppedTyping builds the transient typing-stopped signal.
func UserStoppedTyping(actor Actor, channelID string) Outbound {
	return Outbound{Name: NameUserStoppedTyping, Payload: TypingPayload{
		ChannelID: channelID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// StatusPayload carries a presence status change.
type StatusPayload struct {
	Actor     Actor     `json:"actor"`
	Status    string    `json:"status"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserStatusUpdated builds the presence change notification for the actor's
// personal room.
func UserStatusUpdated(actor Actor, status, text string) Outbound {
	return Outbound{Name: NameUserStatusUpdated, Payload: StatusPayload{
		Actor:     actor,
		Status:    status,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}}
}

// MembershipPayload carries room membership changes.
type MembershipPayload struct {
	Room      string    `json:"room"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// MemberJoined builds the membership notification for a join.
func MemberJoined(actor Actor, room string) Outbound {
	return Outbound{Name: NameMemberJoined, Payload: MembershipPayload{
		Room:      room,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// MemberLeft builds the membership notification for a leave.
func MemberLeft(actor Actor, room string) Outbound {
	return Outbound{Name: NameMemberLeft, Payload: MembershipPayload{
		Room:      room,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// RolePayload carries a role change inside a community.
type RolePayload struct {
	CommunityID  string    `json:"communityId"`
	TargetUserID string    `json:"targetUserId"`
	Role         string    `json:"role"`
	Actor        Actor     `json:"actor"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoleUpdated builds the broadcast for a role change.
func RoleUpdated(actor Actor, communityID, targetUserID, role string) Outbound {
	return Outbound{Name: NameRoleUpdated, Payload: RolePayload{
		CommunityID:  communityID,
		TargetUserID: targetUserID,
		Role:         role,
		Actor:        actor,
		Timestamp:    time.Now().UTC(),
	}}
}

// VoicePeerPayload carries voice room membership changes.
type VoicePeerPayload struct {
	ChannelID string    `json:"channelId"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// VoicePeerJoined builds the notification for a peer joining a voice room.
func VoicePeerJoined(actor Actor, channelID string) Outbound {
	return Outbound{Name: NameVoicePeerJoined, Payload: VoicePeerPayload{
		ChannelID: channelID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// VoicePeerLeft builds the notification for a peer leaving a voice room.
func VoicePeerLeft(actor Actor, channelID string) Outbound {
	return Outbound{Name: NameVoicePeerLeft, Payload: VoicePeerPayload{
		ChannelID: channelID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}}
}

// VoiceSignalPayload relays a signaling payload to one peer.
type VoiceSignalPayload struct {
	ChannelID string          `json:"channelId"`
	Actor     Actor           `json:"actor"`
	Signal    json.RawMessage `json:"signal"`
	Timestamp time.Time       `json:"timestamp"`
}

// VoiceSignalTo builds the directed signaling relay for the target's
// personal room.
func VoiceSignalTo(actor Actor, channelID string, signal json.RawMessage) Outbound {
	return Outbound{Name: NameVoiceSignal, Payload: VoiceSignalPayload{
		ChannelID: channelID,
		Actor:     actor,
		Signal:    signal,
		Timestamp: time.Now().UTC(),
	}}
}

// Error codes for structured error emits. Every rejection path a client can
// hit maps to one of these.
const (
	CodeInvalidEvent     = "invalid_event"
	CodeNotMember        = "not_member"
	CodePermissionDenied = "permission_denied"
	CodeRateLimited      = "rate_limited"
)

// ErrorPayload is the structured error emitted for a rejected in-connection
// action. The connection stays open.
type ErrorPayload struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Event     string    `json:"event,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent builds a structured error emit naming the failed precondition.
func ErrorEvent(code, message, inboundName string) Outbound {
	return Outbound{Name: NameError, Payload: ErrorPayload{
		Code:      code,
		Message:   message,
		Event:     inboundName,
		Timestamp: time.Now().UTC(),
	}}
}
