// Package http provides the read-only ops API handlers.
//
// The API exposes the governor's view of every configured source: rolling
// window occupancy, in-flight calls, queue depth, breaker state, and the
// remaining backoff. It never mutates governor state; sources recover
// through reported outcomes, not through the API.
//
// Routes:
//   - GET /          service banner
//   - GET /health    service health with governor totals
//   - GET /sources   all source snapshots
//   - GET /sources/:name one source snapshot
package http
