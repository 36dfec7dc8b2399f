package ws

import (
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/infrastructure/logging"
	"github.com/driftwatch/driftwatch/internal/infrastructure/monitoring"
)

// subscriberBuffer is the per-subscriber send queue length. Subscribers
// that fall this far behind start losing events.
const subscriberBuffer = 16

// Hub fans governor events out to all connected stream subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	logger      *logging.Logger
	metrics     *monitoring.Metrics
}

// NewHub creates an event hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		subscribers: make(map[chan []byte]struct{}),
		logger:      logger,
	}
}

// WithMetrics sets the metrics collector
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Subscribe registers a new subscriber and returns its event channel.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	_, ok := h.subscribers[ch]
	if ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.DecWSConnections()
	}
}

// Broadcast pushes an event to every subscriber. Subscribers with a full
// queue miss the event rather than stall the rest.
func (h *Hub) Broadcast(event Event) {
	payload, err := sonic.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	for ch := range h.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.RecordWSEvent(event.Type)
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
