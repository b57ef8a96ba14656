package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hivechat/realtime/core/event"
	"github.com/hivechat/realtime/core/gatekeeper"
	"github.com/hivechat/realtime/core/invalidation"
	"github.com/hivechat/realtime/core/room"
	"github.com/hivechat/realtime/pkg/logger"
	"github.com/hivechat/realtime/pkg/rateguard"
)

// Rate limit action for message sends, keyed by user ID.
const actionSendMessage = "send_message"

// Persistence fronts the platform's CRUD layer for the calls the realtime
// path needs. Writes happen there first; this service only reacts to their
// outcomes.
type Persistence interface {
	// IsChannelMember reports whether the user belongs to the channel.
	IsChannelMember(ctx context.Context, userID, channelID string) (bool, error)
	// IsCommunityMember reports whether the user belongs to the community.
	IsCommunityMember(ctx context.Context, userID, communityID string) (bool, error)
	// CreateMessage persists a message and returns its ID and rendered form.
	CreateMessage(ctx context.Context, userID, channelID, content string) (string, json.RawMessage, error)
	// UpdateStatus persists the user's presence status.
	UpdateStatus(ctx context.Context, userID, status, text string) error
}

// Service routes decoded client events to room membership changes,
// persistence calls, and broadcasts. It is the EventHandler behind the
// websocket endpoint.
type Service struct {
	store       Persistence
	rooms       *room.Manager
	coordinator *invalidation.Coordinator
	guard       *rateguard.Guard
	log         *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceGuard rate limits message sends per user.
func WithServiceGuard(guard *rateguard.Guard) ServiceOption {
	return func(s *Service) {
		s.guard = guard
	}
}

// WithServiceLogger sets the logger for routing diagnostics.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates the event router.
func NewService(store Persistence, rooms *room.Manager, coordinator *invalidation.Coordinator, opts ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		rooms:       rooms,
		coordinator: coordinator,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent dispatches one decoded client event. Returned typed errors
// (*gatekeeper.NotMemberError, *gatekeeper.PermissionError,
// *rateguard.RateLimitError) surface to the client as structured error
// emits; anything else is logged by the caller and swallowed.
func (s *Service) HandleEvent(ctx context.Context, sess *gatekeeper.Session, ev event.Inbound) error {
	switch ev := ev.(type) {
	case event.JoinRoom:
		return s.joinRoom(ctx, sess, ev)
	case event.LeaveRoom:
		return s.leaveRoom(ctx, sess, ev)
	case event.SendMessage:
		return s.sendMessage(ctx, sess, ev)
	case event.TypingStart:
		return s.typing(ctx, sess, ev.ChannelID, true)
	case event.TypingStop:
		return s.typing(ctx, sess, ev.ChannelID, false)
	case event.StatusUpdate:
		return s.statusUpdate(ctx, sess, ev)
	case event.VoiceJoin:
		return s.voiceJoin(ctx, sess, ev)
	case event.VoiceLeave:
		return s.voiceLeave(ctx, sess, ev)
	case event.VoiceSignal:
		return s.voiceSignal(ctx, sess, ev)
	default:
		return fmt.Errorf("unhandled event %s", ev.EventName())
	}
}

func (s *Service) actor(sess *gatekeeper.Session) event.Actor {
	return event.Actor{UserID: sess.UserID(), Username: sess.Username()}
}

// checkMembership verifies room access against persisted membership, not
// the local registry: a user can join a channel room on this instance while
// their membership record lives elsewhere.
func (s *Service) checkMembership(ctx context.Context, sess *gatekeeper.Session, kind room.Kind, id string) error {
	roomKey := room.Key(kind, id)
	switch kind {
	case room.KindUser:
		if id != sess.UserID() {
			return &gatekeeper.PermissionError{Action: "join " + roomKey}
		}
		return nil
	case room.KindCommunity:
		member, err := s.store.IsCommunityMember(ctx, sess.UserID(), id)
		if err != nil {
			return fmt.Errorf("community membership lookup: %w", err)
		}
		if !member {
			return &gatekeeper.NotMemberError{Room: roomKey}
		}
		return nil
	case room.KindChannel, room.KindVoice:
		member, err := s.store.IsChannelMember(ctx, sess.UserID(), id)
		if err != nil {
			return fmt.Errorf("channel membership lookup: %w", err)
		}
		if !member {
			return &gatekeeper.NotMemberError{Room: roomKey}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", room.ErrUnknownKind, kind)
	}
}

func (s *Service) joinRoom(ctx context.Context, sess *gatekeeper.Session, ev event.JoinRoom) error {
	kind, err := room.ParseKind(ev.Kind)
	if err != nil {
		return sess.Emit(event.ErrorEvent(event.CodeInvalidEvent, err.Error(), ev.EventName()))
	}
	if err := s.checkMembership(ctx, sess, kind, ev.ID); err != nil {
		return err
	}

	roomKey := room.Key(kind, ev.ID)
	if err := s.rooms.Join(sess, roomKey); err != nil {
		return fmt.Errorf("join %s: %w", roomKey, err)
	}
	return s.rooms.Broadcast(ctx, roomKey, event.MemberJoined(s.actor(sess), roomKey))
}

func (s *Service) leaveRoom(ctx context.Context, sess *gatekeeper.Session, ev event.LeaveRoom) error {
	kind, err := room.ParseKind(ev.Kind)
	if err != nil {
		return sess.Emit(event.ErrorEvent(event.CodeInvalidEvent, err.Error(), ev.EventName()))
	}

	roomKey := room.Key(kind, ev.ID)
	s.rooms.Leave(sess, roomKey)
	return s.rooms.Broadcast(ctx, roomKey, event.MemberLeft(s.actor(sess), roomKey))
}

func (s *Service) sendMessage(ctx context.Context, sess *gatekeeper.Session, ev event.SendMessage) error {
	if s.guard != nil {
		if err := s.guard.Check(ctx, actionSendMessage, sess.UserID()); err != nil {
			return err
		}
		s.guard.RecordFailure(ctx, actionSendMessage, sess.UserID())
	}

	if err := s.checkMembership(ctx, sess, room.KindChannel, ev.ChannelID); err != nil {
		return err
	}

	_, message, err := s.store.CreateMessage(ctx, sess.UserID(), ev.ChannelID, ev.Content)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	return s.coordinator.OnMutation(ctx, invalidation.MessageCreated, invalidation.Context{
		ChannelID: ev.ChannelID,
		Event:     event.NewMessage(s.actor(sess), ev.ChannelID, message, ev.Nonce),
	})
}

func (s *Service) typing(ctx context.Context, sess *gatekeeper.Session, channelID string, started bool) error {
	roomKey := room.Key(room.KindChannel, channelID)
	if !s.rooms.IsMember(sess, roomKey) {
		return &gatekeeper.NotMemberError{Room: roomKey}
	}

	out := event.UserStoppedTyping(s.actor(sess), channelID)
	if started {
		out = event.UserTyping(s.actor(sess), channelID)
	}
	return s.rooms.Broadcast(ctx, roomKey, out, room.WithSender(sess.SessionID()))
}

func (s *Service) statusUpdate(ctx context.Context, sess *gatekeeper.Session, ev event.StatusUpdate) error {
	if err := s.store.UpdateStatus(ctx, sess.UserID(), ev.Status, ev.Text); err != nil {
		return fmt.Errorf("persist status: %w", err)
	}

	return s.coordinator.OnMutation(ctx, invalidation.StatusUpdated, invalidation.Context{
		UserID: sess.UserID(),
		Event:  event.UserStatusUpdated(s.actor(sess), ev.Status, ev.Text),
	})
}

func (s *Service) voiceJoin(ctx context.Context, sess *gatekeeper.Session, ev event.VoiceJoin) error {
	if err := s.checkMembership(ctx, sess, room.KindVoice, ev.ChannelID); err != nil {
		return err
	}

	roomKey := room.Key(room.KindVoice, ev.ChannelID)
	if err := s.rooms.Join(sess, roomKey); err != nil {
		return fmt.Errorf("join %s: %w", roomKey, err)
	}
	return s.rooms.Broadcast(ctx, roomKey, event.VoicePeerJoined(s.actor(sess), ev.ChannelID),
		room.WithSender(sess.SessionID()), room.WithExcludeSender(true))
}

func (s *Service) voiceLeave(ctx context.Context, sess *gatekeeper.Session, ev event.VoiceLeave) error {
	roomKey := room.Key(room.KindVoice, ev.ChannelID)
	s.rooms.Leave(sess, roomKey)
	return s.rooms.Broadcast(ctx, roomKey, event.VoicePeerLeft(s.actor(sess), ev.ChannelID))
}

// voiceSignal relays WebRTC negotiation payloads to one peer through their
// personal room. The payload is opaque here.
func (s *Service) voiceSignal(ctx context.Context, sess *gatekeeper.Session, ev event.VoiceSignal) error {
	roomKey := room.Key(room.KindVoice, ev.ChannelID)
	if !s.rooms.IsMember(sess, roomKey) {
		return &gatekeeper.NotMemberError{Room: roomKey}
	}

	s.log.DebugContext(ctx, "relaying voice signal",
		logger.Component("relay"),
		logger.UserID(sess.UserID()),
		logger.Room(roomKey))

	return s.rooms.Broadcast(ctx, room.PersonalKey(ev.TargetUserID),
		event.VoiceSignalTo(s.actor(sess), ev.ChannelID, ev.Signal))
}
