package room

import "errors"

// Package-level error definitions for room operations.
var (
	ErrUnknownKind = errors.New("unknown room kind")
	ErrEmptyRoom   = errors.New("empty room key")
)
