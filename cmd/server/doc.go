// Package main is the entry point for the driftwatch server.
//
// The server mediates access to a fixed set of flaky external data sources
// through a per-source governor (concurrency slots, sliding-window quotas,
// exponential backoff, circuit breaking) and exposes a read-only operations
// surface over HTTP.
//
// The server provides:
//   - REST API for source status snapshots
//   - WebSocket streaming of breaker and backoff events
//   - Prometheus metrics exposition
//   - Rate limiting and request correlation
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -sources sources.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
