package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediagrab/internal/app"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	streamMgr *app.StreamManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(streamMgr *app.StreamManager) *HealthHandler {
	return &HealthHandler{streamMgr: streamMgr}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	ActiveStreams int    `json:"active_streams"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       "1.0.0",
		ActiveStreams: h.streamMgr.ActiveCount(),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
