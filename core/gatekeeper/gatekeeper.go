package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivechat/realtime/core/room"
	"github.com/hivechat/realtime/pkg/async"
	"github.com/hivechat/realtime/pkg/logger"
	"github.com/hivechat/realtime/pkg/rateguard"
)

// Profile is the public identity snapshot attached to a session at
// handshake time.
type Profile struct {
	UserID   string
	Username string
}

// IdentityStore resolves authenticated users and records their presence.
// Implementations typically front the platform's user service.
type IdentityStore interface {
	// Profile fetches the user's public profile. An error means the user no
	// longer exists and the handshake is rejected.
	Profile(ctx context.Context, userID string) (Profile, error)
	// SetPresence marks the user online or offline. Called off the hot path;
	// failures are logged, never surfaced to the client.
	SetPresence(ctx context.Context, userID string, online bool) error
}

// Rate limit action for handshake attempts, keyed by client IP.
const actionConnect = "ws_connect"

// Gatekeeper authenticates incoming connections and owns session lifecycle:
// one Session per accepted connection, registered until exactly one
// Disconnect tears it down.
type Gatekeeper struct {
	verifier   TokenVerifier
	identities IdentityStore
	denylist   Denylist
	rooms      *room.Manager
	guard      *rateguard.Guard
	log        *slog.Logger

	sendBuffer      int
	presenceTimeout time.Duration

	mu       sync.Mutex
	closed   bool
	sessions map[uuid.UUID]*Session
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithLogger sets the logger for handshake and lifecycle diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gatekeeper) {
		if log != nil {
			g.log = log
		}
	}
}

// WithDenylist enables revocation checks against the given denylist.
func WithDenylist(d Denylist) Option {
	return func(g *Gatekeeper) {
		g.denylist = d
	}
}

// WithGuard rate limits handshake attempts per client IP.
func WithGuard(guard *rateguard.Guard) Option {
	return func(g *Gatekeeper) {
		g.guard = guard
	}
}

// WithSendBuffer sets the per-session outbox capacity.
func WithSendBuffer(size int) Option {
	return func(g *Gatekeeper) {
		if size > 0 {
			g.sendBuffer = size
		}
	}
}

// WithPresenceTimeout bounds the async presence updates fired on connect and
// disconnect.
func WithPresenceTimeout(timeout time.Duration) Option {
	return func(g *Gatekeeper) {
		if timeout > 0 {
			g.presenceTimeout = timeout
		}
	}
}

// New creates a gatekeeper. Sessions it accepts are joined to their personal
// room through the given room manager.
func New(verifier TokenVerifier, identities IdentityStore, rooms *room.Manager, opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		verifier:        verifier,
		identities:      identities,
		rooms:           rooms,
		log:             logger.Discard(),
		sendBuffer:      256,
		presenceTimeout: 5 * time.Second,
		sessions:        make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate verifies the credential and, on success, creates a session
// already joined to the user's personal room. No session state exists for a
// rejected handshake.
//
// Rejections are *AuthError (missing, invalid, expired, or blacklisted
// credential) or *rateguard.RateLimitError when the client IP has exhausted
// its handshake attempts.
func (g *Gatekeeper) Authenticate(ctx context.Context, credential, clientIP string) (*Session, error) {
	if g.guard != nil && clientIP != "" {
		if err := g.guard.Check(ctx, actionConnect, clientIP); err != nil {
			return nil, err
		}
	}

	if credential == "" {
		return nil, &AuthError{Reason: ReasonMissing}
	}

	claims, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		g.recordFailure(ctx, clientIP)
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &AuthError{Reason: ReasonInvalid, Err: err}
	}

	if g.denylist != nil {
		revoked, err := g.denylist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			// Revocation cannot be verified; authentication fails closed.
			g.log.ErrorContext(ctx, "denylist unavailable",
				logger.Component("gatekeeper"),
				logger.Error(err))
			return nil, &AuthError{Reason: ReasonBlacklisted, Err: err}
		}
		if revoked {
			g.recordFailure(ctx, clientIP)
			return nil, &AuthError{Reason: ReasonBlacklisted}
		}
	}

	profile, err := g.identities.Profile(ctx, claims.UserID)
	if err != nil {
		g.recordFailure(ctx, clientIP)
		return nil, &AuthError{Reason: ReasonInvalid, Err: err}
	}

	sess := newSession(profile.UserID, profile.Username, g.sendBuffer)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		sess.close()
		return nil, ErrClosed
	}
	g.sessions[sess.id] = sess
	g.mu.Unlock()

	if err := g.rooms.Join(sess, room.PersonalKey(profile.UserID)); err != nil {
		g.mu.Lock()
		delete(g.sessions, sess.id)
		g.mu.Unlock()
		sess.close()
		return nil, fmt.Errorf("join personal room: %w", err)
	}

	if g.guard != nil && clientIP != "" {
		g.guard.Clear(ctx, actionConnect, clientIP)
	}
	g.markPresence(ctx, profile.UserID, true)

	g.log.InfoContext(ctx, "session established",
		logger.Component("gatekeeper"),
		logger.SessionID(sess.id),
		logger.UserID(profile.UserID))

	return sess, nil
}

// Disconnect tears the session down: it is removed from every room, its
// outbox is closed, and the user's presence is marked offline in the
// background. Duplicate calls are no-ops; only the first signal does the
// work, regardless of whether it came from a read error, a write error, or
// shutdown.
func (g *Gatekeeper) Disconnect(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}

	g.mu.Lock()
	_, active := g.sessions[sess.id]
	delete(g.sessions, sess.id)
	g.mu.Unlock()
	if !active {
		return
	}

	released := g.rooms.LeaveAll(sess)
	sess.close()
	g.markPresence(ctx, sess.userID, false)

	g.log.InfoContext(ctx, "session closed",
		logger.Component("gatekeeper"),
		logger.SessionID(sess.id),
		logger.UserID(sess.userID),
		logger.Count("rooms_released", len(released)),
		slog.Int64("dropped_frames", sess.Dropped()),
		logger.Elapsed(sess.connectedAt))
}

// markPresence fires the presence update without holding up the caller. The
// context is detached so an in-flight disconnect survives request teardown.
func (g *Gatekeeper) markPresence(ctx context.Context, userID string, online bool) {
	detached := context.WithoutCancel(ctx)
	future := async.Exec(detached, userID, func(ctx context.Context, id string) error {
		ctx, cancel := context.WithTimeout(ctx, g.presenceTimeout)
		defer cancel()
		return g.identities.SetPresence(ctx, id, online)
	})
	go func() {
		if err := future.Await(); err != nil {
			g.log.Warn("presence update failed",
				logger.Component("gatekeeper"),
				logger.UserID(userID),
				slog.Bool("online", online),
				logger.Error(err))
		}
	}()
}

func (g *Gatekeeper) recordFailure(ctx context.Context, clientIP string) {
	if g.guard != nil && clientIP != "" {
		g.guard.RecordFailure(ctx, actionConnect, clientIP)
	}
}

// Sessions reports the number of live sessions on this instance.
func (g *Gatekeeper) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Shutdown disconnects every live session. New handshakes are rejected with
// ErrClosed.
func (g *Gatekeeper) Shutdown(ctx context.Context) {
	g.mu.Lock()
	g.closed = true
	active := make([]*Session, 0, len(g.sessions))
	for _, sess := range g.sessions {
		active = append(active, sess)
	}
	g.mu.Unlock()

	for _, sess := range active {
		g.Disconnect(ctx, sess)
	}
}
