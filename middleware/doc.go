// Package middleware provides net/http middleware for the relay's HTTP
// surface: request IDs for cross-service tracing and structured request
// logging.
//
//	var handler http.Handler = mux
//	handler = middleware.Logging(log)(handler)
//	handler = middleware.RequestID()(handler)
//
// The logging middleware passes http.Hijacker through, so it can sit in
// front of websocket upgrade endpoints.
package middleware
