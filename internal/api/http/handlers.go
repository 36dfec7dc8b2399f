package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftwatch/driftwatch/internal/api/ws"
	"github.com/driftwatch/driftwatch/internal/infrastructure/governor"
	"github.com/driftwatch/driftwatch/internal/infrastructure/monitoring"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	governor *governor.Governor
	metrics  *monitoring.Metrics
	hub      *ws.Hub
}

// NewHandlers creates a new handler set
func NewHandlers(gov *governor.Governor, metrics *monitoring.Metrics, hub *ws.Hub) *Handlers {
	return &Handlers{
		governor: gov,
		metrics:  metrics,
		hub:      hub,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "driftwatch",
		"version": "1.0.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	snapshots := h.governor.Snapshots()
	open := 0
	for _, s := range snapshots {
		if s.State == governor.StateOpen.String() {
			open++
		}
	}

	resp := gin.H{
		"status": "healthy",
		"governor": gin.H{
			"sources": len(snapshots),
			"open":    open,
		},
		"stream": gin.H{
			"subscribers": h.hub.Subscribers(),
		},
	}
	if h.metrics != nil {
		snap := h.metrics.GetSnapshot()
		resp["totals"] = gin.H{
			"requests":   snap.TotalRequests,
			"errors":     snap.TotalErrors,
			"admissions": snap.TotalAdmissions,
			"rejections": snap.TotalRejections,
			"avg_wait_s": snap.AvgWait(),
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ListSources returns the admission state of every governed source
func (h *Handlers) ListSources(c *gin.Context) {
	snapshots := h.governor.Snapshots()

	c.JSON(http.StatusOK, gin.H{
		"sources": snapshots,
		"count":   len(snapshots),
	})
}

// GetSource returns the admission state of one governed source
func (h *Handlers) GetSource(c *gin.Context) {
	name := c.Param("name")

	snapshot, ok := h.governor.Snapshot(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "unknown source",
			"source": name,
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
