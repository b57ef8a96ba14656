package jwt

import "errors"

var (
	// ErrInvalidToken indicates a malformed token or a failed temporal claim check.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token is past its expiration time.
	ErrExpiredToken = errors.New("token expired")

	// ErrInvalidSignature indicates signature verification failed.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrUnexpectedSigningMethod indicates the token was signed with a method
	// other than HMAC-SHA256.
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")

	// ErrMissingSigningKey is returned when a service is created without a key.
	ErrMissingSigningKey = errors.New("missing signing key")

	// ErrMissingClaims is returned when Generate is called with nil claims.
	ErrMissingClaims = errors.New("missing claims")
)
