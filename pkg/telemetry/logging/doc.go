// Package logging provides structured logging for procmetrics.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON, text and console output formats
//   - Context-aware logging with request and process ids
//   - A level that can be raised or lowered at runtime
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	logger.SetDefault()
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "request served", "status", 200)
//
// Library packages accept a plain *slog.Logger. Pass logger.Slog() to them;
// records they log with a context still carry the context fields.
package logging
