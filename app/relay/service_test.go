package relay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/realtime/app/relay"
	"github.com/hivechat/realtime/core/bus"
	"github.com/hivechat/realtime/core/cache"
	"github.com/hivechat/realtime/core/event"
	"github.com/hivechat/realtime/core/gatekeeper"
	"github.com/hivechat/realtime/core/invalidation"
	"github.com/hivechat/realtime/core/room"
	"github.com/hivechat/realtime/pkg/jwt"
	"github.com/hivechat/realtime/pkg/rateguard"
)

const relayTestSecret = "relay-service-test-secret-32-b!!"

type stubStore struct {
	mu               sync.Mutex
	channelMembers   map[string]map[string]bool
	communityMembers map[string]map[string]bool
	created          int
	statuses         map[string]string
	createErr        error
}

func newStubStore() *stubStore {
	return &stubStore{
		channelMembers:   make(map[string]map[string]bool),
		communityMembers: make(map[string]map[string]bool),
		statuses:         make(map[string]string),
	}
}

func (s *stubStore) addChannelMember(channelID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channelMembers[channelID] == nil {
		s.channelMembers[channelID] = make(map[string]bool)
	}
	s.channelMembers[channelID][userID] = true
}

func (s *stubStore) IsChannelMember(_ context.Context, userID, channelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelMembers[channelID][userID], nil
}

func (s *stubStore) IsCommunityMember(_ context.Context, userID, communityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.communityMembers[communityID][userID], nil
}

func (s *stubStore) CreateMessage(_ context.Context, userID, channelID, content string) (string, json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", nil, s.createErr
	}
	s.created++
	id := fmt.Sprintf("msg-%d", s.created)
	raw, _ := json.Marshal(map[string]string{
		"id":        id,
		"channelId": channelID,
		"authorId":  userID,
		"content":   content,
	})
	return id, raw, nil
}

func (s *stubStore) UpdateStatus(_ context.Context, userID, status, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[userID] = status
	return nil
}

type stubIdentities struct{}

func (stubIdentities) Profile(_ context.Context, userID string) (gatekeeper.Profile, error) {
	return gatekeeper.Profile{UserID: userID, Username: "name-" + userID}, nil
}

func (stubIdentities) SetPresence(context.Context, string, bool) error { return nil }

type fixture struct {
	keeper  *gatekeeper.Gatekeeper
	rooms   *room.Manager
	cache   *cache.Cache
	store   *stubStore
	service *relay.Service
}

func newFixture(t *testing.T, opts ...relay.ServiceOption) *fixture {
	t.Helper()

	cacheLayer := cache.New(cache.NewMemoryStore())
	rooms := room.NewManager(bus.NewMemoryBus(nil))
	store := newStubStore()
	service := relay.NewService(store, rooms, invalidation.New(cacheLayer, rooms), opts...)

	verifier, err := gatekeeper.NewJWTVerifier(relayTestSecret)
	require.NoError(t, err)
	keeper := gatekeeper.New(verifier, stubIdentities{}, rooms)

	return &fixture{keeper: keeper, rooms: rooms, cache: cacheLayer, store: store, service: service}
}

func (f *fixture) session(t *testing.T, userID string) *gatekeeper.Session {
	t.Helper()

	signer, err := jwt.NewFromString(relayTestSecret)
	require.NoError(t, err)
	token, err := signer.Generate(jwt.StandardClaims{
		Subject:   userID,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	sess, err := f.keeper.Authenticate(context.Background(), token, "")
	require.NoError(t, err)
	return sess
}

// drain empties the session outbox. Delivery through the memory bus is
// synchronous, so everything broadcast so far is already enqueued.
func drain(sess *gatekeeper.Session) []gatekeeper.Frame {
	var frames []gatekeeper.Frame
	for {
		select {
		case f := <-sess.Outbox():
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func frameNames(frames []gatekeeper.Frame) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func TestService_SendMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.store.addChannelMember("ch-1", "alice")
	f.store.addChannelMember("ch-1", "bob")

	alice := f.session(t, "alice")
	bob := f.session(t, "bob")
	channelRoom := room.Key(room.KindChannel, "ch-1")
	require.NoError(t, f.rooms.Join(alice, channelRoom))
	require.NoError(t, f.rooms.Join(bob, channelRoom))

	// A cached history page that must not survive the send.
	pageKey := cache.PageKey("channel", "ch-1", "messages", 1, 50)
	require.NoError(t, f.cache.Set(ctx, pageKey, []byte(`[]`), time.Minute))
	drain(alice)
	drain(bob)

	err := f.service.HandleEvent(ctx, alice, event.SendMessage{
		ChannelID: "ch-1",
		Content:   "hello",
		Nonce:     "nonce-7",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.created)

	_, ok := f.cache.Get(ctx, pageKey)
	assert.False(t, ok, "history page must be invalidated before the broadcast lands")

	// Content events reach the sender too.
	assert.Equal(t, []string{event.NameNewMessage}, frameNames(drain(alice)))

	bobFrames := drain(bob)
	require.Len(t, bobFrames, 1)
	var payload event.NewMessagePayload
	require.NoError(t, json.Unmarshal(bobFrames[0].Data, &payload))
	assert.Equal(t, "ch-1", payload.ChannelID)
	assert.Equal(t, "nonce-7", payload.Nonce)
	assert.Equal(t, "alice", payload.Actor.UserID)
}

func TestService_SendMessageRejectsNonMember(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	mallory := f.session(t, "mallory")

	err := f.service.HandleEvent(context.Background(), mallory, event.SendMessage{
		ChannelID: "ch-1",
		Content:   "hi",
	})
	var notMember *gatekeeper.NotMemberError
	require.ErrorAs(t, err, &notMember)
	assert.Zero(t, f.store.created, "nothing persisted for a rejected send")
}

func TestService_SendMessageRateLimited(t *testing.T) {
	t.Parallel()

	guard := rateguard.New(rateguard.NewMemoryStore(),
		rateguard.WithLimit("send_message", rateguard.Limit{Threshold: 2, Window: time.Minute}))
	f := newFixture(t, relay.WithServiceGuard(guard))
	ctx := context.Background()
	f.store.addChannelMember("ch-1", "alice")
	alice := f.session(t, "alice")

	for i := 0; i < 2; i++ {
		require.NoError(t, f.service.HandleEvent(ctx, alice, event.SendMessage{ChannelID: "ch-1", Content: "x"}))
	}

	err := f.service.HandleEvent(ctx, alice, event.SendMessage{ChannelID: "ch-1", Content: "x"})
	var rateErr *rateguard.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 2, f.store.created)
}

func TestService_TypingExcludesSender(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	alice := f.session(t, "alice")
	bob := f.session(t, "bob")
	channelRoom := room.Key(room.KindChannel, "ch-1")
	require.NoError(t, f.rooms.Join(alice, channelRoom))
	require.NoError(t, f.rooms.Join(bob, channelRoom))
	drain(alice)
	drain(bob)

	require.NoError(t, f.service.HandleEvent(ctx, alice, event.TypingStart{ChannelID: "ch-1"}))
	require.NoError(t, f.service.HandleEvent(ctx, alice, event.TypingStop{ChannelID: "ch-1"}))

	assert.Empty(t, drain(alice), "the typist already knows they are typing")
	assert.Equal(t, []string{event.NameUserTyping, event.NameUserStoppedTyping}, frameNames(drain(bob)))
}

func TestService_TypingRequiresRoomMembership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.session(t, "alice")

	err := f.service.HandleEvent(context.Background(), alice, event.TypingStart{ChannelID: "ch-1"})
	var notMember *gatekeeper.NotMemberError
	require.ErrorAs(t, err, &notMember)
}

func TestService_JoinRoom(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.store.addChannelMember("ch-1", "alice")
	alice := f.session(t, "alice")

	require.NoError(t, f.service.HandleEvent(ctx, alice, event.JoinRoom{Kind: "channel", ID: "ch-1"}))
	assert.True(t, f.rooms.IsMember(alice, room.Key(room.KindChannel, "ch-1")))
	assert.Equal(t, []string{event.NameMemberJoined}, frameNames(drain(alice)))

	// Not a member of the community, so the room is off limits.
	err := f.service.HandleEvent(ctx, alice, event.JoinRoom{Kind: "community", ID: "com-1"})
	var notMember *gatekeeper.NotMemberError
	require.ErrorAs(t, err, &notMember)
	assert.False(t, f.rooms.IsMember(alice, room.Key(room.KindCommunity, "com-1")))
}

func TestService_JoinForeignPersonalRoomDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.session(t, "alice")

	err := f.service.HandleEvent(context.Background(), alice, event.JoinRoom{Kind: "user", ID: "bob"})
	var permission *gatekeeper.PermissionError
	require.ErrorAs(t, err, &permission)
}

func TestService_StatusUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	alice := f.session(t, "alice")
	// A friend subscribed to alice's personal room.
	bob := f.session(t, "bob")
	require.NoError(t, f.rooms.Join(bob, room.PersonalKey("alice")))

	userKey := cache.EntityKey("user", "alice")
	require.NoError(t, f.cache.Set(ctx, userKey, []byte(`{"status":"online"}`), time.Minute))
	drain(alice)
	drain(bob)

	require.NoError(t, f.service.HandleEvent(ctx, alice, event.StatusUpdate{Status: "idle"}))

	assert.Equal(t, "idle", f.store.statuses["alice"])
	_, ok := f.cache.Get(ctx, userKey)
	assert.False(t, ok, "cached profile must be dropped before subscribers re-read")
	assert.Contains(t, frameNames(drain(bob)), event.NameUserStatusUpdated)
}

func TestService_VoiceSignalTargetsOnePeer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.store.addChannelMember("voice-1", "alice")
	f.store.addChannelMember("voice-1", "bob")
	f.store.addChannelMember("voice-1", "carol")

	alice := f.session(t, "alice")
	bob := f.session(t, "bob")
	carol := f.session(t, "carol")
	for _, sess := range []*gatekeeper.Session{alice, bob, carol} {
		require.NoError(t, f.service.HandleEvent(ctx, sess, event.VoiceJoin{ChannelID: "voice-1"}))
	}
	drain(alice)
	drain(bob)
	drain(carol)

	err := f.service.HandleEvent(ctx, alice, event.VoiceSignal{
		ChannelID:    "voice-1",
		TargetUserID: "bob",
		Signal:       json.RawMessage(`{"sdp":"offer"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{event.NameVoiceSignal}, frameNames(drain(bob)))
	assert.Empty(t, drain(carol), "signaling is peer to peer, not room wide")
}

func TestService_VoiceJoinExcludesSelfFromAnnounce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.store.addChannelMember("voice-1", "alice")
	f.store.addChannelMember("voice-1", "bob")

	alice := f.session(t, "alice")
	require.NoError(t, f.service.HandleEvent(ctx, alice, event.VoiceJoin{ChannelID: "voice-1"}))
	drain(alice)

	bob := f.session(t, "bob")
	require.NoError(t, f.service.HandleEvent(ctx, bob, event.VoiceJoin{ChannelID: "voice-1"}))

	assert.Equal(t, []string{event.NameVoicePeerJoined}, frameNames(drain(alice)))
	assert.Empty(t, drain(bob), "the joiner learns peers from the roster, not their own announce")
}
