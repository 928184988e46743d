package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/api/handlers"
	"github.com/yourusername/vidfetch-go/api/middleware"
	"github.com/yourusername/vidfetch-go/internal/app"
)

// SetupRouter sets up the HTTP router
func SetupRouter(engine *app.Engine, log *zap.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(engine)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		taskHandler := handlers.NewTaskHandler(engine, log)
		eventHandler := handlers.NewEventWebSocketHandler(engine, log)

		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskHandler.AddTask)
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/stats", taskHandler.GetStats)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.POST("/:id/cancel", taskHandler.CancelTask)
			tasks.POST("/:id/pause", taskHandler.PauseTask)
			tasks.POST("/:id/resume", taskHandler.ResumeTask)
			tasks.POST("/:id/retry", taskHandler.RetryTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.GET("/:id/events", eventHandler.HandleTaskEvents)
		}

		v1.GET("/events", eventHandler.HandleAllEvents)
		v1.GET("/metadata", taskHandler.GetMetadata)
	}

	return router
}
