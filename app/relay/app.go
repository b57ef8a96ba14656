package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/hivechat/realtime/core/bus"
	"github.com/hivechat/realtime/core/cache"
	"github.com/hivechat/realtime/core/config"
	"github.com/hivechat/realtime/core/gatekeeper"
	"github.com/hivechat/realtime/core/invalidation"
	"github.com/hivechat/realtime/core/room"
	"github.com/hivechat/realtime/core/server"
	"github.com/hivechat/realtime/integration/database/redis"
	"github.com/hivechat/realtime/middleware"
	"github.com/hivechat/realtime/pkg/logger"
	"github.com/hivechat/realtime/pkg/rateguard"
)

// App composes the relay: redis, cache, fan-out bus, room manager,
// gatekeeper, and invalidation coordinator, all built explicitly in Run and
// handed their dependencies. There are no package-level singletons; two Apps
// in one process would be two independent relays.
type App struct {
	config     Config
	log        *slog.Logger
	store      Persistence
	identities gatekeeper.IdentityStore
	denylist   gatekeeper.Denylist
}

// AppOption configures an App.
type AppOption func(*App) error

// WithLogger sets the application logger.
func WithLogger(log *slog.Logger) AppOption {
	return func(app *App) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		app.log = log
		return nil
	}
}

// WithPersistence wires the platform's CRUD layer.
func WithPersistence(store Persistence) AppOption {
	return func(app *App) error {
		if store == nil {
			return errors.New("persistence cannot be nil")
		}
		app.store = store
		return nil
	}
}

// WithIdentities wires the identity store used at handshake time.
func WithIdentities(identities gatekeeper.IdentityStore) AppOption {
	return func(app *App) error {
		if identities == nil {
			return errors.New("identity store cannot be nil")
		}
		app.identities = identities
		return nil
	}
}

// WithDenylist enables token revocation checks. When unset, Run builds a
// redis-backed denylist on the shared client.
func WithDenylist(denylist gatekeeper.Denylist) AppOption {
	return func(app *App) error {
		app.denylist = denylist
		return nil
	}
}

// NewApp loads configuration and applies options. Persistence and identity
// collaborators are required; everything else has defaults.
func NewApp(opts ...AppOption) (*App, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	app := &App{
		config: cfg,
		log:    logger.New(logger.WithJSON()),
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.store == nil {
		return nil, errors.New("persistence is required, use WithPersistence")
	}
	if app.identities == nil {
		return nil, errors.New("identity store is required, use WithIdentities")
	}

	return app, nil
}

// Run connects to redis, assembles the pipeline, and serves until the
// context is canceled. Shutdown order matters: the gatekeeper drains
// sessions before the bus and HTTP server stop, so every disconnect still
// reaches the room registry.
func (app *App) Run(ctx context.Context) error {
	client, err := redis.Connect(ctx, app.config.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	cacheLayer := cache.New(
		cache.NewRedisStore(client, cache.WithScanBatchSize(app.config.Redis.ScanBatchSize)),
		cache.WithLogger(app.log),
	)

	guard := rateguard.New(rateguard.NewRedisStore(client),
		rateguard.WithLogger(app.log),
		rateguard.WithLimit("ws_connect", rateguard.Limit{
			Threshold: app.config.ConnectAttempts,
			Window:    app.config.ConnectWindow,
		}),
		rateguard.WithLimit(actionSendMessage, rateguard.Limit{
			Threshold: app.config.MessageBurst,
			Window:    app.config.MessageWindow,
		}),
	)

	fanout := bus.NewRedisBus(client, bus.WithRedisBusLogger(app.log))
	rooms := room.NewManager(fanout, room.WithLogger(app.log))

	verifier, err := gatekeeper.NewJWTVerifier(app.config.JWTSecret)
	if err != nil {
		return err
	}

	denylist := app.denylist
	if denylist == nil {
		denylist = gatekeeper.NewRedisDenylist(client)
	}

	keeper := gatekeeper.New(verifier, app.identities, rooms,
		gatekeeper.WithLogger(app.log),
		gatekeeper.WithDenylist(denylist),
		gatekeeper.WithGuard(guard),
		gatekeeper.WithSendBuffer(app.config.SendBuffer),
	)

	coordinator := invalidation.New(cacheLayer, rooms, invalidation.WithLogger(app.log))
	service := NewService(app.store, rooms, coordinator,
		WithServiceGuard(guard),
		WithServiceLogger(app.log),
	)

	mux := http.NewServeMux()
	mux.Handle(app.config.WSPath, keeper.Handler(service.HandleEvent,
		gatekeeper.WithWSPingInterval(app.config.PingInterval),
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := redis.Healthcheck(client)(r.Context()); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	var handler http.Handler = mux
	handler = middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger: app.log,
		Skip:   func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})(handler)
	handler = middleware.RequestID()(handler)

	srv, err := server.NewFromConfig(app.config.Server, server.WithLogger(app.log))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(fanout.Run(ctx))
	g.Go(srv.Run(ctx, handler))
	g.Go(func() error {
		<-ctx.Done()
		keeper.Shutdown(context.WithoutCancel(ctx))
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
