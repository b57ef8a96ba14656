package bus

import "errors"

// Package-level error definitions for the fan-out bus.
var (
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrNoHandler       = errors.New("no handler subscribed")
	ErrAlreadyStarted  = errors.New("bus already started")
	ErrNotStarted      = errors.New("bus not started")
)
