package middleware

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hivechat/realtime/pkg/clientip"
	"github.com/hivechat/realtime/pkg/logger"
)

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	Logger *slog.Logger
	// Skip suppresses logging for matching requests, typically health checks.
	Skip func(r *http.Request) bool
	// SlowRequestThreshold escalates requests above it to warning level.
	SlowRequestThreshold time.Duration
}

// Logging logs each request with the given logger at default settings.
func Logging(log *slog.Logger) func(http.Handler) http.Handler {
	return LoggingWithConfig(LoggingConfig{Logger: log})
}

// LoggingWithConfig logs one line per request: method, path, status, client
// IP, and duration. Hijacked connections (websocket upgrades) are logged
// with the status recorded before the hijack and the duration of the whole
// connection.
func LoggingWithConfig(cfg LoggingConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				logger.ClientIP(clientip.GetIP(r)),
				logger.Elapsed(start),
			}
			if id, ok := RequestIDFromContext(r.Context()); ok {
				attrs = append(attrs, slog.String("request_id", id))
			}

			elapsed := time.Since(start)
			switch {
			case rec.status >= http.StatusInternalServerError:
				cfg.Logger.ErrorContext(r.Context(), "request failed", attrs...)
			case cfg.SlowRequestThreshold > 0 && elapsed > cfg.SlowRequestThreshold && !rec.hijacked:
				cfg.Logger.WarnContext(r.Context(), "slow request", attrs...)
			default:
				cfg.Logger.InfoContext(r.Context(), "request", attrs...)
			}
		})
	}
}

// statusRecorder captures the response status and passes hijacking through
// so websocket upgrades keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.hijacked = true
	return hijacker.Hijack()
}

// Flush passes through so streaming responses keep working.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
