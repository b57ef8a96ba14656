// Package rateguard provides fixed-window attempt limiting keyed by actor
// and action, backed by a pluggable counter store.
//
// The guard tracks failed attempts: the first failure within a window creates
// a counter with TTL equal to the window length, later failures increment it,
// and reaching the threshold rejects further attempts until the window
// expires. A successful attempt clears the counter outright.
//
//	guard := rateguard.New(rateguard.NewRedisStore(client),
//		rateguard.WithLimit("login", rateguard.Limit{Threshold: 5, Window: 15 * time.Minute}),
//	)
//
//	if err := guard.Check(ctx, "login", clientIP); err != nil {
//		var rle *rateguard.RateLimitError
//		if errors.As(err, &rle) {
//			// reject with retry-after = rle.RetryAfter
//		}
//	}
//
//	// after the attempt:
//	guard.RecordFailure(ctx, "login", clientIP) // on failure
//	guard.Clear(ctx, "login", clientIP)         // on success
//
// The guard fails open: when the store is unreachable, Check allows the
// attempt and logs the degradation. Availability of the primary path is
// preferred over strict enforcement.
package rateguard
