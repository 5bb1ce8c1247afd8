// internal/app/router.go
package app

import (
	"context"
	"net/http"
	"time"

	authHandler "waitlist-service/internal/handlers/auth"
	establishmentHandler "waitlist-service/internal/handlers/establishment"
	wsHandler "waitlist-service/internal/handlers/websocket"
	"waitlist-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler          *authHandler.AuthHandler
	EstablishmentHandler *establishmentHandler.EstablishmentHandler
	WSHandler            *wsHandler.WebSocketHandler
	AuthMiddleware       *middleware.AuthMiddleware
	Pingers              map[string]Pinger
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", healthCheck(logger, h.Pingers))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	wsAdmin := api.Group("/ws")
	wsAdmin.Use(h.AuthMiddleware.SuperAdminOnly()...)
	{
		wsAdmin.GET("/stats", h.WSHandler.GetStats)
	}

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/super-admin/login", h.AuthHandler.SuperAdminLogin)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/me", h.AuthHandler.GetMe)
	}

	// ==================== Establishments ====================
	establishments := api.Group("/establishments")
	{
		// Public polling fallback for the live queue
		establishments.GET("/:id/queue", h.EstablishmentHandler.Queue)

		admin := establishments.Group("")
		admin.Use(h.AuthMiddleware.SuperAdminOnly()...)
		{
			admin.GET("", h.EstablishmentHandler.List)
		}
	}
}

func healthCheck(logger *zap.Logger, pingers map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(pingers))
		for name, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "version": "1.0.0", "dependencies": deps})
	}
}
