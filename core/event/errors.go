package event

import "errors"

// Package-level error definitions for event decoding.
var (
	ErrMalformedFrame = errors.New("malformed event frame")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidField   = errors.New("invalid field value")
)
