package gatekeeper_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/realtime/core/bus"
	"github.com/hivechat/realtime/core/gatekeeper"
	"github.com/hivechat/realtime/core/room"
	"github.com/hivechat/realtime/pkg/jwt"
	"github.com/hivechat/realtime/pkg/rateguard"
)

type stubIdentities struct {
	mu       sync.Mutex
	profiles map[string]gatekeeper.Profile
	presence map[string]bool
	marks    int
	err      error
}

func newStubIdentities() *stubIdentities {
	return &stubIdentities{
		profiles: map[string]gatekeeper.Profile{
			"user-1": {UserID: "user-1", Username: "alice"},
			"user-2": {UserID: "user-2", Username: "bob"},
		},
		presence: make(map[string]bool),
	}
}

func (s *stubIdentities) Profile(_ context.Context, userID string) (gatekeeper.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return gatekeeper.Profile{}, s.err
	}
	profile, ok := s.profiles[userID]
	if !ok {
		return gatekeeper.Profile{}, errors.New("user not found")
	}
	return profile, nil
}

func (s *stubIdentities) SetPresence(_ context.Context, userID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = online
	s.marks++
	return nil
}

func (s *stubIdentities) online(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence[userID]
}

func (s *stubIdentities) markCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks
}

func signToken(t *testing.T, secret, userID, tokenID string, expiresAt time.Time) string {
	t.Helper()
	service, err := jwt.NewFromString(secret)
	require.NoError(t, err)
	token, err := service.Generate(jwt.StandardClaims{
		ID:        tokenID,
		Subject:   userID,
		ExpiresAt: expiresAt.Unix(),
		IssuedAt:  time.Now().Unix(),
	})
	require.NoError(t, err)
	return token
}

const testSecret = "gatekeeper-test-secret-32-bytes!!"

func newKeeper(t *testing.T, opts ...gatekeeper.Option) (*gatekeeper.Gatekeeper, *room.Manager, *stubIdentities) {
	t.Helper()
	verifier, err := gatekeeper.NewJWTVerifier(testSecret)
	require.NoError(t, err)
	identities := newStubIdentities()
	rooms := room.NewManager(bus.NewMemoryBus(nil))
	return gatekeeper.New(verifier, identities, rooms, opts...), rooms, identities
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestGatekeeper_Authenticate(t *testing.T) {
	t.Parallel()

	keeper, rooms, identities := newKeeper(t)
	ctx := context.Background()

	token := signToken(t, testSecret, "user-1", "tok-1", time.Now().Add(time.Hour))
	sess, err := keeper.Authenticate(ctx, token, "203.0.113.7")
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.Equal(t, "user-1", sess.UserID())
	assert.Equal(t, "alice", sess.Username())
	assert.True(t, rooms.IsMember(sess, room.PersonalKey("user-1")))
	assert.Equal(t, 1, keeper.Sessions())
	waitFor(t, func() bool { return identities.online("user-1") })
}

func TestGatekeeper_RejectsMissingToken(t *testing.T) {
	t.Parallel()

	keeper, _, _ := newKeeper(t)

	_, err := keeper.Authenticate(context.Background(), "", "203.0.113.7")
	var authErr *gatekeeper.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, gatekeeper.ReasonMissing, authErr.Reason)
	assert.Equal(t, 0, keeper.Sessions())
}

func TestGatekeeper_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	keeper, _, _ := newKeeper(t)

	token := signToken(t, testSecret, "user-1", "tok-1", time.Now().Add(-time.Minute))
	_, err := keeper.Authenticate(context.Background(), token, "203.0.113.7")
	var authErr *gatekeeper.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, gatekeeper.ReasonExpired, authErr.Reason)
}

func TestGatekeeper_RejectsForgedToken(t *testing.T) {
	t.Parallel()

	keeper, _, _ := newKeeper(t)

	token := signToken(t, "a-different-signing-key-32-bytes!", "user-1", "tok-1", time.Now().Add(time.Hour))
	_, err := keeper.Authenticate(context.Background(), token, "203.0.113.7")
	var authErr *gatekeeper.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, gatekeeper.ReasonInvalid, authErr.Reason)
	assert.Equal(t, 0, keeper.Sessions())
}

func TestGatekeeper_RejectsRevokedToken(t *testing.T) {
	t.Parallel()

	denylist := gatekeeper.NewMemoryDenylist()
	denylist.Revoke("tok-revoked")
	keeper, _, _ := newKeeper(t, gatekeeper.WithDenylist(denylist))

	token := signToken(t, testSecret, "user-1", "tok-revoked", time.Now().Add(time.Hour))
	_, err := keeper.Authenticate(context.Background(), token, "203.0.113.7")
	var authErr *gatekeeper.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, gatekeeper.ReasonBlacklisted, authErr.Reason)
}

func TestGatekeeper_RejectsUnknownUser(t *testing.T) {
	t.Parallel()

	keeper, _, _ := newKeeper(t)

	token := signToken(t, testSecret, "user-gone", "tok-1", time.Now().Add(time.Hour))
	_, err := keeper.Authenticate(context.Background(), token, "203.0.113.7")
	var authErr *gatekeeper.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, gatekeeper.ReasonInvalid, authErr.Reason)
}

func TestGatekeeper_RateLimitsHandshakes(t *testing.T) {
	t.Parallel()

	guard := rateguard.New(rateguard.NewMemoryStore(),
		rateguard.WithLimit("ws_connect", rateguard.Limit{Threshold: 2, Window: time.Minute}))
	keeper, _, _ := newKeeper(t, gatekeeper.WithGuard(guard))
	ctx := context.Background()

	forged := signToken(t, "a-different-signing-key-32-bytes!", "user-1", "tok-1", time.Now().Add(time.Hour))
	for i := 0; i < 2; i++ {
		_, err := keeper.Authenticate(ctx, forged, "203.0.113.7")
		var authErr *gatekeeper.AuthError
		require.ErrorAs(t, err, &authErr)
	}

	// Third attempt is refused before the credential is even inspected.
	valid := signToken(t, testSecret, "user-1", "tok-2", time.Now().Add(time.Hour))
	_, err := keeper.Authenticate(ctx, valid, "203.0.113.7")
	var rateErr *rateguard.RateLimitError
	require.ErrorAs(t, err, &rateErr)

	// A different IP is unaffected.
	sess, err := keeper.Authenticate(ctx, valid, "198.51.100.4")
	require.NoError(t, err)
	require.NotNil(t, sess)
}

func TestGatekeeper_DisconnectIdempotent(t *testing.T) {
	t.Parallel()

	keeper, rooms, identities := newKeeper(t)
	ctx := context.Background()

	token := signToken(t, testSecret, "user-1", "tok-1", time.Now().Add(time.Hour))
	sess, err := keeper.Authenticate(ctx, token, "203.0.113.7")
	require.NoError(t, err)
	require.NoError(t, rooms.Join(sess, room.Key(room.KindChannel, "general")))
	waitFor(t, func() bool { return identities.markCount() == 1 })

	keeper.Disconnect(ctx, sess)
	keeper.Disconnect(ctx, sess)
	keeper.Disconnect(ctx, sess)

	assert.Equal(t, 0, keeper.Sessions())
	assert.Empty(t, rooms.Rooms(sess))
	waitFor(t, func() bool { return !identities.online("user-1") })
	// Offline was marked exactly once despite three disconnect signals.
	assert.Equal(t, 2, identities.markCount())

	select {
	case <-sess.Done():
	default:
		t.Fatal("session not closed after disconnect")
	}
}

func TestGatekeeper_Shutdown(t *testing.T) {
	t.Parallel()

	keeper, _, _ := newKeeper(t)
	ctx := context.Background()

	for i, user := range []string{"user-1", "user-2"} {
		token := signToken(t, testSecret, user, "tok-"+user, time.Now().Add(time.Hour))
		sess, err := keeper.Authenticate(ctx, token, "203.0.113.7")
		require.NoError(t, err, "session %d", i)
		require.NotNil(t, sess)
	}
	require.Equal(t, 2, keeper.Sessions())

	keeper.Shutdown(ctx)
	assert.Equal(t, 0, keeper.Sessions())

	token := signToken(t, testSecret, "user-1", "tok-late", time.Now().Add(time.Hour))
	_, err := keeper.Authenticate(ctx, token, "203.0.113.7")
	require.ErrorIs(t, err, gatekeeper.ErrClosed)
}

func TestSession_DeliverDropsWhenSaturated(t *testing.T) {
	t.Parallel()

	keeper, _, _ := newKeeper(t, gatekeeper.WithSendBuffer(2))
	ctx := context.Background()

	token := signToken(t, testSecret, "user-1", "tok-1", time.Now().Add(time.Hour))
	sess, err := keeper.Authenticate(ctx, token, "203.0.113.7")
	require.NoError(t, err)

	// Nothing drains the outbox, so delivery beyond the buffer drops.
	for i := 0; i < 5; i++ {
		sess.Deliver("newMessage", []byte(`{}`))
	}
	assert.Equal(t, int64(3), sess.Dropped())

	keeper.Disconnect(ctx, sess)
	sess.Deliver("newMessage", []byte(`{}`))
	assert.Equal(t, int64(3), sess.Dropped(), "delivery after close is silently ignored")
}
