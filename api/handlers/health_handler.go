package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/httpdl-go/internal/app"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	downloadMgr *app.DownloadManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(downloadMgr *app.DownloadManager) *HealthHandler {
	return &HealthHandler{
		downloadMgr: downloadMgr,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Session struct {
		Active bool   `json:"active"`
		Status string `json:"status,omitempty"`
	} `json:"session"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	current := h.downloadMgr.Current()
	response.Session.Active = current.Session.Active
	if current.Download != nil {
		response.Session.Status = string(current.Download.Status)
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.downloadMgr.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "download manager stopped",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
