// Package server wraps http.Server with graceful shutdown and
// environment-driven configuration.
//
// The server speaks plain HTTP; TLS terminates at the edge. HTTP-layer
// timeouts do not govern websocket traffic, since upgraded connections are
// hijacked out of the server's control and keep themselves alive with
// protocol-level pings.
//
// # Usage
//
//	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, mux))
//	return g.Wait()
//
// Run ties the server lifetime to an errgroup context: cancellation starts
// a graceful shutdown bounded by the configured timeout, and in-flight
// requests get to finish.
package server
