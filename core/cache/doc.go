// Package cache implements the cache-aside layer shared by every server
// instance: reads populate entries on miss, writes invalidate affected keys
// through the invalidation coordinator.
//
// The Store interface abstracts the backing key/value store. RedisStore is
// the production implementation; MemoryStore serves tests and single-node
// runs.
//
//	store := cache.NewRedisStore(client, cache.WithScanBatchSize(cfg.ScanBatchSize))
//	c := cache.New(store, cache.WithLogger(log))
//
//	raw, err := c.GetOrLoad(ctx, cache.EntityKey("channel", id), time.Minute,
//		func(ctx context.Context) ([]byte, error) {
//			return repo.ChannelJSON(ctx, id)
//		})
//
// The layer fails open. Store unavailability turns reads into misses and
// invalidations into logged no-ops; the source of truth keeps serving, only
// performance degrades. Staleness is bounded by each entry's TTL: the race
// between a write's invalidation and a concurrent read's repopulation is
// accepted, not locked against.
package cache
