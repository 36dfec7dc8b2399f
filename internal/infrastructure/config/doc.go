// Package config provides 12-factor configuration management for the
// watcher service.
//
// Configuration is loaded from environment variables with sensible
// defaults. Per-source admission limits come from a YAML, TOML, or JSON
// file, or from a built-in table when no file is configured.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Sources: location of the source limits file
//   - Governor: shared failure policy (trip threshold, backoff)
//   - Fetch: upstream HTTP client settings
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting for the ops API
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	limits, err := config.LoadSources(cfg.Sources.Path)
//
// Environment Variables:
//   - PORT, HOST, SOURCES_PATH
//   - GOVERNOR_TRIP_THRESHOLD, GOVERNOR_BASE_BACKOFF, GOVERNOR_MAX_BACKOFF, GOVERNOR_THROTTLE_FACTOR
//   - FETCH_TIMEOUT, FETCH_USER_AGENT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
