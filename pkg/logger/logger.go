package logger

import (
	"io"
	"log/slog"
	"os"
)

type config struct {
	level     slog.Level
	json      bool
	writer    io.Writer
	component string
}

// Option configures the logger returned by New.
type Option func(*config)

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithJSON switches output to the JSON handler. Text is the default.
func WithJSON() Option {
	return func(c *config) {
		c.json = true
	}
}

// WithWriter sets the output destination. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.writer = w
		}
	}
}

// WithComponent attaches a component attribute to every record.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}

// New creates a slog.Logger configured for the process.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level}

	var handler slog.Handler
	if cfg.json {
		handler = slog.NewJSONHandler(cfg.writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(cfg.writer, handlerOpts)
	}

	log := slog.New(handler)
	if cfg.component != "" {
		log = log.With(Component(cfg.component))
	}

	return log
}

// Discard returns a logger that drops every record. Useful as a default
// for components that accept an optional logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
