// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Loggers can be scoped per component with Named, and tests swap in a
// no-op logger with NewNop.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	govLog := logger.Named("governor")
//	govLog.Warn("breaker opened", zap.String("source", "coindesk"))
//	logger.Error("fetch failed", zap.Error(err))
package logging
