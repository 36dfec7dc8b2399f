// Package server provides HTTP server setup and initialization for driftwatch.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (request ids, metrics, CORS, rate limiting, recovery)
//   - Source budget loading (file-based or built-in defaults)
//   - Governor construction with policy callbacks wired to logs, Prometheus
//     metrics, and the WebSocket event hub
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Build the Prometheus registry and metrics
//  4. Load per-source budgets and construct the governor
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
