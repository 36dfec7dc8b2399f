package ws

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/infrastructure/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages WebSocket stream connections
type Handler struct {
	hub    *Hub
	logger *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, logger *logging.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
	}
}

// HandleConnection upgrades the request and streams governor events until
// the client disconnects. The connection has a single writer goroutine;
// replies to client pings are routed through it.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(events)

	replies := make(chan []byte, 4)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case payload, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case payload := <-replies:
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}
	}()

	h.logger.Debug("stream subscriber connected")
	h.reply(replies, welcomeEvent())

	// Reader: respond to pings, drop everything else
	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			h.reply(replies, newEvent(TypePong, ""))
		}
	}

	h.hub.Unsubscribe(events)
	<-done
	h.logger.Debug("stream subscriber disconnected")
}

func (h *Handler) reply(replies chan []byte, event Event) {
	payload, err := sonic.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}
	select {
	case replies <- payload:
	default:
	}
}

func welcomeEvent() Event {
	e := newEvent(TypeSystem, "")
	e.Message = "Connected to driftwatch event stream"
	return e
}
