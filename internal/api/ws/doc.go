// Package ws provides WebSocket streaming of governor events.
//
// This package fans breaker transitions and backoff events out to every
// connected subscriber, so dashboards see source health change in real
// time without polling the snapshot API.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection established
//   - breaker_open: a source tripped its breaker
//   - breaker_closed: a source recovered
//   - backoff: a failure scheduled a backoff delay
//   - pong: Keep-alive reply
//
// Every event carries a ULID so subscribers can order and de-duplicate.
//
// Example Usage:
//
//	hub := ws.NewHub(logger).WithMetrics(metrics)
//	handler := ws.NewHandler(hub, logger)
//	router.GET("/stream", handler.HandleConnection)
//	hub.Broadcast(ws.NewBreakerEvent("coindesk", "closed", "open"))
package ws
