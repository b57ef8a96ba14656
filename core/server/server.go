package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hivechat/realtime/pkg/logger"
)

const (
	// DefaultReadTimeout bounds reading the request, including the
	// websocket handshake. Hijacked connections are not affected.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds writing plain HTTP responses.
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout closes idle keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the graceful shutdown window.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes caps request header size.
	DefaultMaxHeaderBytes = 1 << 20
)

// Server wraps http.Server with graceful shutdown. TLS is expected to
// terminate at the edge; this server always speaks plain HTTP.
//
// Read, write, and idle timeouts apply to the HTTP layer only. Websocket
// connections hijack the underlying net.Conn during upgrade, after which
// their liveness is managed by ping/pong at the protocol level.
type Server struct {
	mu             sync.RWMutex
	addr           string
	server         *http.Server
	log            *slog.Logger
	shutdown       time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	maxHeaderBytes int
	running        bool
}

// New creates a server with the given address and options.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:           addr,
		log:            logger.Discard(),
		shutdown:       DefaultShutdownTimeout,
		readTimeout:    DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
		idleTimeout:    DefaultIdleTimeout,
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start serves until the context is canceled or the listener fails. Returns
// context.Err() on cancellation; use Stop for graceful shutdown.
func (s *Server) Start(ctx context.Context, handler http.Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true

	s.server = &http.Server{
		Addr:           s.addr,
		Handler:        handler,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		IdleTimeout:    s.idleTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
	}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "listening", logger.Component("server"), slog.String("addr", s.addr))

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop gracefully shuts the server down within the configured timeout.
// Returns immediately if the server is not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false

	if err != nil {
		s.log.Error("server shutdown error", logger.Component("server"), logger.Error(err))
		return err
	}

	s.log.Info("server shutdown complete", logger.Component("server"))
	return nil
}

// Run adapts the server to errgroup lifecycle management: the returned
// function serves until the group's context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx, handler)
		}()

		select {
		case <-ctx.Done():
			if stopErr := s.Stop(); stopErr != nil {
				s.log.Error("failed to stop server on context cancellation",
					logger.Component("server"), logger.Error(stopErr))
			}
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
