package gatekeeper

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hivechat/realtime/core/event"
	"github.com/hivechat/realtime/pkg/clientip"
	"github.com/hivechat/realtime/pkg/logger"
	"github.com/hivechat/realtime/pkg/rateguard"
)

// Close codes sent on a rejected handshake, one per rejection reason.
const (
	CloseMissingToken     = 4001
	CloseInvalidToken     = 4002
	CloseExpiredToken     = 4003
	CloseBlacklistedToken = 4004
	CloseRateLimited      = 4008
)

// EventHandler processes one decoded client event. Returning *NotMemberError,
// *PermissionError, or *rateguard.RateLimitError emits the matching
// structured error to the client; any other error is logged and swallowed.
type EventHandler func(ctx context.Context, sess *Session, ev event.Inbound) error

type wsConfig struct {
	upgrader     *websocket.Upgrader
	readLimit    int64
	pongTimeout  time.Duration
	pingInterval time.Duration
	writeTimeout time.Duration
}

// WSOption configures the websocket endpoint.
type WSOption func(*wsConfig)

func WithWSBuffers(read, write int) WSOption {
	return func(c *wsConfig) {
		c.upgrader.ReadBufferSize = read
		c.upgrader.WriteBufferSize = write
	}
}

func WithWSOriginCheck(fn func(r *http.Request) bool) WSOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = fn
	}
}

func WithWSAllowAnyOrigin() WSOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

func WithWSReadLimit(limit int64) WSOption {
	return func(c *wsConfig) {
		c.readLimit = limit
	}
}

func WithWSPingInterval(interval time.Duration) WSOption {
	return func(c *wsConfig) {
		c.pingInterval = interval
		c.pongTimeout = interval * 2
	}
}

func WithWSWriteTimeout(timeout time.Duration) WSOption {
	return func(c *wsConfig) {
		c.writeTimeout = timeout
	}
}

// Handler returns the websocket endpoint. The credential travels in the
// Authorization header (Bearer scheme) or, for browser clients that cannot
// set headers on the handshake, a token query parameter. Authentication
// happens immediately after upgrade; a rejected handshake is closed with a
// reason code before any event flows.
func (g *Gatekeeper) Handler(handle EventHandler, opts ...WSOption) http.HandlerFunc {
	cfg := &wsConfig{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readLimit:    64 << 10,
		pongTimeout:  60 * time.Second,
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := cfg.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			return
		}
		defer conn.Close()

		ctx := r.Context()
		sess, err := g.Authenticate(ctx, credentialFrom(r), clientip.GetIP(r))
		if err != nil {
			g.closeRejected(conn, err, cfg.writeTimeout)
			return
		}
		defer g.Disconnect(ctx, sess)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		go g.writeLoop(ctx, conn, sess, cfg)
		g.readLoop(ctx, conn, sess, cfg, handle)
	}
}

func credentialFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return ""
		}
		return token
	}
	return r.URL.Query().Get("token")
}

func (g *Gatekeeper) closeRejected(conn *websocket.Conn, err error, writeTimeout time.Duration) {
	code := CloseInvalidToken
	reason := "authentication failed"

	var authErr *AuthError
	var rateErr *rateguard.RateLimitError
	switch {
	case errors.As(err, &authErr):
		reason = authErr.Reason
		switch authErr.Reason {
		case ReasonMissing:
			code = CloseMissingToken
		case ReasonExpired:
			code = CloseExpiredToken
		case ReasonBlacklisted:
			code = CloseBlacklistedToken
		}
	case errors.As(err, &rateErr):
		code = CloseRateLimited
		reason = "rate limited"
	}

	deadline := time.Now().Add(writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func (g *Gatekeeper) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session, cfg *wsConfig, handle EventHandler) {
	conn.SetReadLimit(cfg.readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.pongTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.DebugContext(ctx, "connection dropped",
					logger.Component("gatekeeper"),
					logger.SessionID(sess.id),
					logger.Error(err))
			}
			return
		}

		ev, err := event.DecodeInbound(raw)
		if err != nil {
			_ = sess.Emit(event.ErrorEvent(event.CodeInvalidEvent, err.Error(), ""))
			continue
		}

		if err := handle(ctx, sess, ev); err != nil {
			g.rejectEvent(ctx, sess, ev, err)
		}
	}
}

// rejectEvent maps handler errors to structured error emits. The connection
// stays open; only enumerated rejections reach the client.
func (g *Gatekeeper) rejectEvent(ctx context.Context, sess *Session, ev event.Inbound, err error) {
	var notMember *NotMemberError
	var permission *PermissionError
	var rateLimited *rateguard.RateLimitError

	switch {
	case errors.As(err, &notMember):
		_ = sess.Emit(event.ErrorEvent(event.CodeNotMember, err.Error(), ev.EventName()))
	case errors.As(err, &permission):
		_ = sess.Emit(event.ErrorEvent(event.CodePermissionDenied, err.Error(), ev.EventName()))
	case errors.As(err, &rateLimited):
		_ = sess.Emit(event.ErrorEvent(event.CodeRateLimited, err.Error(), ev.EventName()))
	default:
		g.log.ErrorContext(ctx, "event handler failed",
			logger.Component("gatekeeper"),
			logger.SessionID(sess.id),
			logger.Event(ev.EventName()),
			logger.Error(err))
	}
}

func (g *Gatekeeper) writeLoop(ctx context.Context, conn *websocket.Conn, sess *Session, cfg *wsConfig) {
	ticker := time.NewTicker(cfg.pingInterval)
	defer ticker.Stop()
	// Closing the connection unblocks the read loop when writes fail.
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			deadline := time.Now().Add(cfg.writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case frame := <-sess.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.writeTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(cfg.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
