package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-evolsynth/pkg/server/dto"
)

const serviceName = "go-evolsynth"

// HealthHandler handles health check requests
type HealthHandler struct {
	pipeline Pipeline
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(p Pipeline) *HealthHandler {
	return &HealthHandler{pipeline: p}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Service: serviceName,
	})
}

// ReadinessCheck handles GET /ready. A degraded cache still counts as ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	stats, err := h.pipeline.CacheStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse("not_ready", http.StatusServiceUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:       "ready",
		Service:      serviceName,
		CacheBackend: stats.Backend,
		Degraded:     stats.Degraded,
	})
}
