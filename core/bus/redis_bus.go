package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hivechat/realtime/pkg/logger"
)

// RedisBus relays envelopes across instances over Redis pub/sub, one channel
// per room. It keeps the set of rooms with local members and re-subscribes to
// all of them after a connection loss, so clients never have to rejoin.
//
// Publish never fails the triggering mutation: local delivery happens first
// and a failed relay is logged as a degradation, leaving sessions on other
// instances to silently miss the event.
type RedisBus struct {
	client     redis.UniversalClient
	log        *slog.Logger
	instanceID string

	reconnectInterval time.Duration

	mu      sync.Mutex
	handler Handler
	rooms   map[string]struct{}
	pubsub  *redis.PubSub
	cancel  context.CancelFunc

	relayed  atomic.Int64
	received atomic.Int64
	degraded atomic.Int64
}

// RedisBusOption configures a RedisBus.
type RedisBusOption func(*RedisBus)

// WithRedisBusLogger sets the logger for relay and degradation events.
func WithRedisBusLogger(log *slog.Logger) RedisBusOption {
	return func(b *RedisBus) {
		if log != nil {
			b.log = log
		}
	}
}

// WithReconnectInterval sets the wait between subscription recovery attempts.
func WithReconnectInterval(interval time.Duration) RedisBusOption {
	return func(b *RedisBus) {
		if interval > 0 {
			b.reconnectInterval = interval
		}
	}
}

// WithInstanceID overrides the generated instance identifier. Useful in tests.
func WithInstanceID(id string) RedisBusOption {
	return func(b *RedisBus) {
		if id != "" {
			b.instanceID = id
		}
	}
}

// NewRedisBus creates a bus over the given Redis client.
// Call Start (or Run with an errgroup) to begin receiving remote envelopes.
func NewRedisBus(client redis.UniversalClient, opts ...RedisBusOption) *RedisBus {
	b := &RedisBus{
		client:            client,
		log:               logger.Discard(),
		instanceID:        uuid.NewString(),
		reconnectInterval: 2 * time.Second,
		rooms:             make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// InstanceID returns this bus's instance identifier.
func (b *RedisBus) InstanceID() string {
	return b.instanceID
}

// Subscribe registers the handler receiving envelopes, both local and remote.
func (b *RedisBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Publish delivers env to local subscribers in call order, then relays it to
// other instances. Relay failure is a logged degradation, not an error.
func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	if err := env.validate(); err != nil {
		return err
	}
	env.OriginInstance = b.instanceID

	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		return ErrNoHandler
	}

	// Local first: sessions on this instance see the event even when the
	// shared store is down, and in publish order.
	handler(env)

	data, err := json.Marshal(env)
	if err != nil {
		return errors.Join(ErrInvalidEnvelope, err)
	}

	if err := b.client.Publish(ctx, Channel(env.Room), data).Err(); err != nil {
		b.degraded.Add(1)
		b.log.WarnContext(ctx, "fan-out degraded to local-only delivery",
			logger.Room(env.Room), logger.Event(env.Event), logger.Error(err))
		return nil
	}

	b.relayed.Add(1)
	return nil
}

// AddRoom registers cross-instance interest in a room. If the subscription
// is live the room channel is added immediately; otherwise the next
// (re)connect picks it up.
func (b *RedisBus) AddRoom(room string) {
	b.mu.Lock()
	b.rooms[room] = struct{}{}
	pubsub := b.pubsub
	b.mu.Unlock()

	if pubsub != nil {
		if err := pubsub.Subscribe(context.Background(), Channel(room)); err != nil {
			b.log.Warn("room channel subscribe failed, deferred to reconnect",
				logger.Room(room), logger.Error(err))
		}
	}
}

// RemoveRoom releases interest in a room.
func (b *RedisBus) RemoveRoom(room string) {
	b.mu.Lock()
	delete(b.rooms, room)
	pubsub := b.pubsub
	b.mu.Unlock()

	if pubsub != nil {
		if err := pubsub.Unsubscribe(context.Background(), Channel(room)); err != nil {
			b.log.Warn("room channel unsubscribe failed",
				logger.Room(room), logger.Error(err))
		}
	}
}

// Start runs the receive loop until the context is cancelled. It is a
// blocking operation; use Run for the errgroup pattern or call it in a
// goroutine.
func (b *RedisBus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	b.log.InfoContext(ctx, "fan-out bus started", logger.Key("instance_id", b.instanceID))

	for {
		if err := b.receive(ctx); err != nil {
			if ctx.Err() != nil {
				b.log.InfoContext(context.Background(), "fan-out bus stopping")
				return ctx.Err()
			}
			b.log.WarnContext(ctx, "fan-out subscription lost, reconnecting",
				logger.Duration(b.reconnectInterval), logger.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.reconnectInterval):
			}
		}
	}
}

// receive establishes one subscription covering every tracked room and
// consumes messages until the connection fails or ctx is done.
func (b *RedisBus) receive(ctx context.Context) error {
	b.mu.Lock()
	// The instance channel keeps the subscription non-empty even when no
	// rooms have local members yet.
	channels := make([]string, 0, len(b.rooms)+1)
	channels = append(channels, instanceChannel(b.instanceID))
	for room := range b.rooms {
		channels = append(channels, Channel(room))
	}
	pubsub := b.client.Subscribe(ctx, channels...)
	b.pubsub = pubsub
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.pubsub = nil
		b.mu.Unlock()
		_ = pubsub.Close()
	}()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		b.dispatch(msg.Payload)
	}
}

func (b *RedisBus) dispatch(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("dropping undecodable envelope", logger.Error(err))
		return
	}

	// Own envelopes were already delivered locally at publish time.
	if env.OriginInstance == b.instanceID {
		return
	}

	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		return
	}

	b.received.Add(1)
	handler(env)
}

// Stop cancels the receive loop and closes the subscription.
func (b *RedisBus) Stop() error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	return nil
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (b *RedisBus) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- b.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = b.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Stats reports relay counters for observability.
func (b *RedisBus) Stats() (relayed, received, degraded int64) {
	return b.relayed.Load(), b.received.Load(), b.degraded.Load()
}

func instanceChannel(instanceID string) string {
	return "fanout:instance:" + instanceID
}
