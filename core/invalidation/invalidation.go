package invalidation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hivechat/realtime/core/cache"
	"github.com/hivechat/realtime/core/event"
	"github.com/hivechat/realtime/core/room"
	"github.com/hivechat/realtime/pkg/logger"
)

// Mutation identifies a write that has already been persisted.
type Mutation string

const (
	MessageCreated   Mutation = "message.created"
	MessageUpdated   Mutation = "message.updated"
	MessageDeleted   Mutation = "message.deleted"
	MemberAdded      Mutation = "channel.member_added"
	MemberRemoved    Mutation = "channel.member_removed"
	RoleUpdated      Mutation = "community.role_updated"
	ProfileUpdated   Mutation = "user.profile_updated"
	StatusUpdated    Mutation = "user.status_updated"
	CommunityUpdated Mutation = "community.updated"
	InviteCreated    Mutation = "community.invite_created"
	InviteAccepted   Mutation = "community.invite_accepted"
)

// Context carries the identifiers a rule needs to derive cache keys and
// target rooms, plus the event to broadcast once stale entries are gone.
// A zero Event name means invalidate only, no broadcast.
type Context struct {
	UserID       string
	TargetUserID string
	ChannelID    string
	CommunityID  string
	MessageID    string
	Event        event.Outbound
}

// Rule maps one mutation kind to the cache entries it staleifies and the
// rooms that must hear about it. Any of the deriving funcs may be nil.
type Rule struct {
	Check    func(Context) error
	Keys     func(Context) []string
	Prefixes func(Context) []string
	Rooms    func(Context) []string
}

// Coordinator sequences the post-write fan-out: stale cache entries are
// dropped first, then the event is broadcast. A subscriber that reacts to
// the broadcast by re-reading therefore misses the cache and reloads fresh
// data instead of resurrecting the old copy.
type Coordinator struct {
	cache *cache.Cache
	rooms *room.Manager
	rules map[Mutation]Rule
	log   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for degradation diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRule registers or overrides the rule for one mutation kind.
func WithRule(kind Mutation, rule Rule) Option {
	return func(c *Coordinator) {
		c.rules[kind] = rule
	}
}

// New creates a coordinator with the default rule set.
func New(cacheLayer *cache.Cache, rooms *room.Manager, opts ...Option) *Coordinator {
	c := &Coordinator{
		cache: cacheLayer,
		rooms: rooms,
		rules: DefaultRules(),
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMutation runs the rule for the given mutation kind. Cache invalidation
// happens before the broadcast, always in that order. Store failures degrade
// to logs; the only errors returned are an unknown mutation kind or a
// context missing the fields its rule requires.
func (c *Coordinator) OnMutation(ctx context.Context, kind Mutation, mctx Context) error {
	rule, ok := c.rules[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMutation, kind)
	}
	if rule.Check != nil {
		if err := rule.Check(mctx); err != nil {
			return err
		}
	}

	if rule.Keys != nil {
		if keys := rule.Keys(mctx); len(keys) > 0 {
			c.cache.Invalidate(ctx, keys...)
		}
	}
	if rule.Prefixes != nil {
		for _, prefix := range rule.Prefixes(mctx) {
			c.cache.InvalidatePrefix(ctx, prefix)
		}
	}

	if mctx.Event.Name == "" || rule.Rooms == nil {
		return nil
	}
	for _, roomKey := range rule.Rooms(mctx) {
		if err := c.rooms.Broadcast(ctx, roomKey, mctx.Event); err != nil {
			c.log.ErrorContext(ctx, "mutation broadcast failed",
				logger.Component("invalidation"),
				logger.Mutation(string(kind)),
				logger.Room(roomKey),
				logger.Error(err))
		}
	}
	return nil
}

func need(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}

func needAll(pairs ...[2]string) error {
	for _, p := range pairs {
		if err := need(p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRules wires the platform's mutation kinds to their cache footprint.
// Message lists are paginated, so list entries are dropped by prefix while
// single entities go by exact key.
func DefaultRules() map[Mutation]Rule {
	return map[Mutation]Rule{
		MessageCreated: {
			Check: func(m Context) error { return need("channelID", m.ChannelID) },
			Prefixes: func(m Context) []string {
				return []string{cache.PagePrefix("channel", m.ChannelID, "messages")}
			},
			Rooms: channelRoom,
		},
		MessageUpdated: {
			Check: messageCheck,
			Keys: func(m Context) []string {
				return []string{cache.EntityKey("message", m.MessageID)}
			},
			Prefixes: func(m Context) []string {
				return []string{cache.PagePrefix("channel", m.ChannelID, "messages")}
			},
			Rooms: channelRoom,
		},
		MessageDeleted: {
			Check: messageCheck,
			Keys: func(m Context) []string {
				return []string{cache.EntityKey("message", m.MessageID)}
			},
			Prefixes: func(m Context) []string {
				return []string{cache.PagePrefix("channel", m.ChannelID, "messages")}
			},
			Rooms: channelRoom,
		},
		MemberAdded: {
			Check: memberCheck,
			Keys: func(m Context) []string {
				return []string{
					cache.SubresourceKey("channel", m.ChannelID, "members"),
					cache.SubresourceKey("user", m.TargetUserID, "channels"),
				}
			},
			Rooms: channelRoom,
		},
		MemberRemoved: {
			Check: memberCheck,
			Keys: func(m Context) []string {
				return []string{
					cache.SubresourceKey("channel", m.ChannelID, "members"),
					cache.SubresourceKey("user", m.TargetUserID, "channels"),
				}
			},
			Rooms: channelRoom,
		},
		RoleUpdated: {
			Check: func(m Context) error {
				return needAll([2]string{"communityID", m.CommunityID}, [2]string{"targetUserID", m.TargetUserID})
			},
			Keys: func(m Context) []string {
				return []string{
					cache.SubresourceKey("community", m.CommunityID, "roles"),
					cache.EntityKey("user", m.TargetUserID),
				}
			},
			Rooms: communityRoom,
		},
		ProfileUpdated: {
			Check: func(m Context) error { return need("userID", m.UserID) },
			Keys: func(m Context) []string {
				return []string{cache.EntityKey("user", m.UserID)}
			},
			Rooms: personalRoom,
		},
		StatusUpdated: {
			Check: func(m Context) error { return need("userID", m.UserID) },
			Keys: func(m Context) []string {
				return []string{cache.EntityKey("user", m.UserID)}
			},
			Rooms: personalRoom,
		},
		CommunityUpdated: {
			Check: func(m Context) error { return need("communityID", m.CommunityID) },
			Keys: func(m Context) []string {
				return []string{cache.EntityKey("community", m.CommunityID)}
			},
			Prefixes: func(m Context) []string {
				return []string{cache.PagePrefix("community", m.CommunityID, "channels")}
			},
			Rooms: communityRoom,
		},
		InviteCreated: {
			Check: func(m Context) error { return need("communityID", m.CommunityID) },
			Prefixes: func(m Context) []string {
				return []string{cache.PagePrefix("community", m.CommunityID, "invites")}
			},
			Rooms: communityRoom,
		},
		InviteAccepted: {
			Check: func(m Context) error {
				return needAll([2]string{"communityID", m.CommunityID}, [2]string{"targetUserID", m.TargetUserID})
			},
			Keys: func(m Context) []string {
				return []string{
					cache.SubresourceKey("community", m.CommunityID, "members"),
					cache.SubresourceKey("user", m.TargetUserID, "communities"),
				}
			},
			Prefixes: func(m Context) []string {
				return []string{cache.PagePrefix("community", m.CommunityID, "invites")}
			},
			Rooms: communityRoom,
		},
	}
}

func messageCheck(m Context) error {
	return needAll([2]string{"channelID", m.ChannelID}, [2]string{"messageID", m.MessageID})
}

func memberCheck(m Context) error {
	return needAll([2]string{"channelID", m.ChannelID}, [2]string{"targetUserID", m.TargetUserID})
}

func channelRoom(m Context) []string {
	return []string{room.Key(room.KindChannel, m.ChannelID)}
}

func communityRoom(m Context) []string {
	return []string{room.Key(room.KindCommunity, m.CommunityID)}
}

func personalRoom(m Context) []string {
	return []string{room.PersonalKey(m.UserID)}
}
