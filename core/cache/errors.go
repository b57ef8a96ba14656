package cache

import "errors"

// Package-level error definitions for cache operations.
var (
	ErrCacheMiss        = errors.New("cache miss")
	ErrInvalidTTL       = errors.New("cache entries require a positive ttl")
	ErrStoreUnavailable = errors.New("cache store unavailable")
)
