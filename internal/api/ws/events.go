package ws

import (
	"time"

	"github.com/driftwatch/driftwatch/internal/shared/id"
)

// Event types pushed to stream subscribers.
const (
	TypeBreakerOpen   = "breaker_open"
	TypeBreakerClosed = "breaker_closed"
	TypeBackoff       = "backoff"
	TypeSystem        = "system"
	TypePong          = "pong"
)

// Event is one governor state change pushed to stream subscribers.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func newEvent(eventType, source string) Event {
	return Event{
		ID:        id.NewEventID().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}

// NewBreakerEvent builds the event for a breaker transition.
func NewBreakerEvent(source, from, to string) Event {
	eventType := TypeBreakerClosed
	if to == "open" {
		eventType = TypeBreakerOpen
	}
	e := newEvent(eventType, source)
	e.Data = map[string]interface{}{
		"from": from,
		"to":   to,
	}
	return e
}

// NewBackoffEvent builds the event for a scheduled backoff.
func NewBackoffEvent(source string, failures int, delay time.Duration, throttled bool) Event {
	e := newEvent(TypeBackoff, source)
	e.Data = map[string]interface{}{
		"failures":  failures,
		"delay_ms":  delay.Milliseconds(),
		"throttled": throttled,
	}
	return e
}
