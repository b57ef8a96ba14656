package invalidation

import "errors"

var (
	// ErrUnknownMutation is returned for a mutation kind with no registered rule.
	ErrUnknownMutation = errors.New("unknown mutation kind")

	// ErrMissingField is returned when a rule needs a context field the
	// caller did not supply.
	ErrMissingField = errors.New("missing mutation context field")
)
