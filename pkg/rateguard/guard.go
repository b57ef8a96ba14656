package rateguard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivechat/realtime/pkg/logger"
)

// Limit is a fixed-window policy for one action class.
type Limit struct {
	// Threshold is the number of failures tolerated within one window.
	// The attempt after the threshold is rejected.
	Threshold int64
	// Window is the counter lifetime, measured from the first failure.
	Window time.Duration
}

// RateLimitError reports a rejected attempt and how long the actor has to
// wait before the window expires.
type RateLimitError struct {
	Action     string
	Actor      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Action, e.RetryAfter.Round(time.Second))
}

// Guard enforces fixed-window attempt limits keyed by actor and action.
//
// Failures create and increment a windowed counter; a success clears it
// outright. The guard fails open: a store outage allows the attempt and logs
// the degradation, trading enforcement strictness for availability.
type Guard struct {
	store        Store
	log          *slog.Logger
	limits       map[string]Limit
	defaultLimit Limit
}

// Option configures a Guard.
type Option func(*Guard)

// WithLimit sets the limit for one action class.
func WithLimit(action string, limit Limit) Option {
	return func(g *Guard) {
		g.limits[action] = limit
	}
}

// WithDefaultLimit sets the limit applied to actions without an explicit one.
func WithDefaultLimit(limit Limit) Option {
	return func(g *Guard) {
		g.defaultLimit = limit
	}
}

// WithLogger sets the logger for degradation events.
func WithLogger(log *slog.Logger) Option {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a rate guard over the given store. Without options every
// action gets 5 tolerated failures per 15 minute window.
func New(store Store, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		log:    logger.Discard(),
		limits: make(map[string]Limit),
		defaultLimit: Limit{
			Threshold: 5,
			Window:    15 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Key returns the counter key for an action and actor:
// {action}_attempts:{actor}. The actor is an IP address for
// pre-authentication actions and a user identifier afterwards.
func Key(action, actor string) string {
	return fmt.Sprintf("%s_attempts:%s", action, actor)
}

// Check returns nil when the actor may attempt the action, or a
// *RateLimitError carrying the window's remaining TTL when the failure
// threshold has been reached.
func (g *Guard) Check(ctx context.Context, action, actor string) error {
	limit := g.limitFor(action)

	count, remaining, err := g.store.Get(ctx, Key(action, actor))
	if err != nil {
		g.log.WarnContext(ctx, "rate guard check failed open",
			logger.Action(action), logger.Error(err))
		return nil
	}

	if count >= limit.Threshold {
		return &RateLimitError{
			Action:     action,
			Actor:      actor,
			RetryAfter: remaining,
		}
	}

	return nil
}

// RecordFailure counts one failed attempt. The first failure in a window
// creates the counter with TTL = window length; later failures increment it.
func (g *Guard) RecordFailure(ctx context.Context, action, actor string) {
	limit := g.limitFor(action)

	if _, _, err := g.store.Incr(ctx, Key(action, actor), limit.Window); err != nil {
		g.log.WarnContext(ctx, "rate guard failed to record failure",
			logger.Action(action), logger.Error(err))
	}
}

// Clear deletes the actor's counter after a successful attempt, fully
// resetting the window.
func (g *Guard) Clear(ctx context.Context, action, actor string) {
	if err := g.store.Delete(ctx, Key(action, actor)); err != nil {
		g.log.WarnContext(ctx, "rate guard failed to clear counter",
			logger.Action(action), logger.Error(err))
	}
}

func (g *Guard) limitFor(action string) Limit {
	if limit, ok := g.limits[action]; ok {
		return limit
	}
	return g.defaultLimit
}
