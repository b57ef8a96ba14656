package room

import "fmt"

// Kind classifies the entity a room is derived from. The kind is part of the
// room key, so rooms for different entity types never collide.
type Kind string

const (
	KindUser      Kind = "user"
	KindChannel   Kind = "channel"
	KindCommunity Kind = "community"
	KindVoice     Kind = "voice"
)

// ParseKind validates a client-supplied room type.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUser, KindChannel, KindCommunity, KindVoice:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Key derives the canonical room key {type}:{id} for an entity.
func Key(kind Kind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// PersonalKey returns the user's personal room, used for cross-device and
// self notifications. Every authenticated session is a member of its own
// personal room for its whole lifetime.
func PersonalKey(userID string) string {
	return Key(KindUser, userID)
}
