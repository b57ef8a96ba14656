// Package redis provides Redis client initialization and health checking for
// the shared store that backs caching, rate counters, and cross-instance
// pub/sub.
//
// Connect validates the connection URL, retries transient failures with a
// fixed interval, and verifies connectivity with a ping before returning the
// client:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// Healthcheck returns a probe function for readiness endpoints. Both redis://
// and rediss:// URL schemes are supported.
package redis
