package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/api/handlers"
	"github.com/yourusername/ytgrab/api/middleware"
	"github.com/yourusername/ytgrab/internal/app"
)

// SetupRouter sets up the HTTP router
func SetupRouter(jobMgr *app.JobManager, history handlers.JobHistory, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(jobMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		formatHandler := handlers.NewFormatHandler(jobMgr, log)
		v1.POST("/formats", formatHandler.ListFormats)

		streamHandler := handlers.NewStreamHandler(jobMgr, log)
		v1.GET("/stream", streamHandler.Stream)

		jobHandler := handlers.NewJobHandler(jobMgr, history, log)
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.SubmitJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.GET("/:id/file", jobHandler.GetFile)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)
		}
	}

	return router
}
