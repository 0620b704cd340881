package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, store StoreInterface, notifier Notifier, scheduler SchedulerInterface) {
	handlers := NewHandlers(store, notifier, scheduler)

	v1 := r.Group("/api")
	{
		// Health check (handle both GET and HEAD), never triggers work
		v1.GET("/health", handlers.HealthCheck)
		v1.HEAD("/health", handlers.HealthCheck)

		// Monitor status and stored state
		v1.GET("/status", handlers.GetStatus)

		// Notification history
		v1.GET("/notifications", handlers.GetNotifications)
		v1.GET("/notifications/:id", handlers.GetNotification)

		// Admin operations (no authentication: bind HOST to a private interface)
		v1.POST("/admin/check", handlers.TriggerCheck)
		v1.POST("/admin/test-notification", handlers.SendTestNotification)
	}
}

// NewRouter creates a gin engine with the API routes mounted
func NewRouter(production bool, store StoreInterface, notifier Notifier, scheduler SchedulerInterface) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if !production {
		r.Use(gin.Logger())
	}
	SetupRoutes(r, store, notifier, scheduler)
	return r
}
