// Package invalidation keeps cached reads consistent with broadcast writes.
//
// Every persisted mutation flows through the Coordinator, which drops the
// affected cache entries first and broadcasts the change event second. The
// ordering is the whole point: a client that reacts to the broadcast by
// re-fetching must miss the cache and load fresh data, never a stale copy.
//
//	coordinator := invalidation.New(cacheLayer, rooms)
//	err := coordinator.OnMutation(ctx, invalidation.MessageUpdated, invalidation.Context{
//		ChannelID: channelID,
//		MessageID: messageID,
//		Event:     event.MessageUpdated(actor, payload),
//	})
//
// Rules are declarative: one per mutation kind, mapping context identifiers
// to exact keys, key prefixes, and target rooms. DefaultRules covers the
// platform's mutations; WithRule overrides or extends the table.
//
// Invalidation failures never surface to the caller. A write that went
// through must be announced even when the cache store is down; the stale
// window that opens up is bounded by entry TTLs.
package invalidation
