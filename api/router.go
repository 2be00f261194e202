package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/httpdl-go/api/handlers"
	"github.com/yourusername/httpdl-go/api/middleware"
	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/infrastructure"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	downloadMgr *app.DownloadManager,
	ui *infrastructure.HeadlessUI,
	log *zap.Logger,
	logsDir string,
) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(downloadMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(downloadMgr, log)
		streamHandler := handlers.NewStreamHandler(downloadMgr, ui, logsDir, log)

		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.StartDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/current", downloadHandler.GetCurrent)
			downloads.POST("/current/cancel", downloadHandler.CancelCurrent)
			downloads.GET("/current/events", streamHandler.DownloadEvents)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		// Log endpoints
		logHandler := handlers.NewLogHandler(logsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
			logs.GET("/:category/stream", streamHandler.LogStream)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
