// Package logger provides structured logging utilities built on Go's standard
// slog package: a small factory for process loggers and a set of nil-safe
// attribute helpers for the attributes this codebase logs most (errors, rooms,
// sessions, cache keys, mutations).
//
// Attribute helpers return an empty slog.Attr for zero values, so call sites
// never need nil checks:
//
//	log.Info("session disconnected",
//		logger.SessionID(sess.ID),
//		logger.UserID(sess.UserID),
//		logger.Error(err), // no-op when err is nil
//	)
package logger
