package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediagrab/api/handlers"
	"github.com/yourusername/mediagrab/api/middleware"
	"github.com/yourusername/mediagrab/internal/app"
	"github.com/yourusername/mediagrab/pkg/logger"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	analyzer *app.Analyzer,
	downloadMgr *app.DownloadManager,
	streamMgr *app.StreamManager,
	multiLog *logger.MultiLogger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(multiLog))
	router.Use(middleware.Recovery(multiLog))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(streamMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		analyzeHandler := handlers.NewAnalyzeHandler(analyzer, multiLog.Extract())
		v1.POST("/analyze", analyzeHandler.Analyze)

		downloadHandler := handlers.NewDownloadHandler(downloadMgr, multiLog.Download())
		progressHandler := handlers.NewProgressWebSocketHandler(downloadMgr, multiLog.Download())
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.StartDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
			downloads.GET("/:id/progress", progressHandler.HandleProgress)
		}

		streamHandler := handlers.NewStreamHandler(streamMgr, multiLog.Download())
		v1.GET("/stream", streamHandler.Stream)
	}

	return router
}
