package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytgrab/internal/app"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	jobMgr *app.JobManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(jobMgr *app.JobManager) *HealthHandler {
	return &HealthHandler{
		jobMgr: jobMgr,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Engine  struct {
		Running bool `json:"running"`
	} `json:"engine"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	response.Engine.Running = h.jobMgr.IsRunning()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.jobMgr.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "job manager not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
