package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/domain"
	"go.uber.org/zap"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(downloadMgr *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// StartDownloadRequest represents a request to start a download
type StartDownloadRequest struct {
	URL string `json:"url" binding:"required"`
	Dir string `json:"dir,omitempty"`
}

// StartDownload handles POST /api/v1/downloads
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req StartDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must not be empty"})
		return
	}

	download, err := h.downloadMgr.StartDownload(req.URL, req.Dir)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, download)
	case errors.Is(err, domain.ErrSessionActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case domain.IsKind(err, domain.KindInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsKind(err, domain.KindCanceled):
		// The session ended before the transfer, e.g. overwrite refused by policy
		c.JSON(http.StatusOK, download)
	default:
		h.logger.Error("Failed to start download", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "download": download})
	}
}

// GetCurrent handles GET /api/v1/downloads/current
func (h *DownloadHandler) GetCurrent(c *gin.Context) {
	c.JSON(http.StatusOK, h.downloadMgr.Current())
}

// CancelCurrent handles POST /api/v1/downloads/current/cancel
func (h *DownloadHandler) CancelCurrent(c *gin.Context) {
	if err := h.downloadMgr.CancelDownload(); err != nil {
		if errors.Is(err, domain.ErrNoActiveDownload) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to cancel download", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download cancel requested"})
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	download, err := h.downloadMgr.GetDownload(c.Param("id"))
	if err != nil {
		h.historyError(c, err)
		return
	}

	c.JSON(http.StatusOK, download)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	downloads, err := h.downloadMgr.ListDownloads(domain.DownloadStatus(c.Query("status")))
	if err != nil {
		h.historyError(c, err)
		return
	}
	if downloads == nil {
		downloads = []*domain.Download{}
	}

	c.JSON(http.StatusOK, downloads)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	stats, err := h.downloadMgr.GetStats()
	if err != nil {
		h.historyError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DeleteDownload handles DELETE /api/v1/downloads/:id
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	id := c.Param("id")
	if err := h.downloadMgr.DeleteDownload(id); err != nil {
		h.historyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download deleted"})
}

// historyError maps history errors to status codes
func (h *DownloadHandler) historyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDownloadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrHistoryDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("History query failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
