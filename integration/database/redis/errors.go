package redis

import "errors"

// Stable error types for connection handling. Check with errors.Is() when
// deciding between retry and abort at startup.
var (
	ErrFailedToParseConnString = errors.New("failed to parse redis connection string")
	ErrNotReady                = errors.New("redis did not become ready within the given time period")
	ErrEmptyConnectionURL      = errors.New("empty redis connection URL")
	ErrHealthcheckFailed       = errors.New("redis healthcheck failed")
)
