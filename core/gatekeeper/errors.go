package gatekeeper

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when authentication is attempted after Shutdown.
var ErrClosed = errors.New("gatekeeper closed")

// Rejection reasons carried by AuthError.
const (
	ReasonMissing     = "missing_token"
	ReasonInvalid     = "invalid_token"
	ReasonExpired     = "expired_token"
	ReasonBlacklisted = "blacklisted_token"
)

// AuthError is a handshake rejection. Reason is one of the Reason constants
// and maps to a distinct close code on the wire.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotMemberError rejects an in-connection action targeting a room the
// session has not joined.
type NotMemberError struct {
	Room string
}

func (e *NotMemberError) Error() string {
	return fmt.Sprintf("not a member of room %s", e.Room)
}

// PermissionError rejects an in-connection action the session's user is not
// allowed to perform.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for %s", e.Action)
}
