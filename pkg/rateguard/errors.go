package rateguard

import "errors"

// Package-level error definitions for rate guard operations.
var (
	ErrStoreUnavailable = errors.New("rate guard store unavailable")
	ErrInvalidWindow    = errors.New("window must be positive")
	ErrInvalidThreshold = errors.New("threshold must be positive")
)
