package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/colink/colink/config"
	"github.com/colink/colink/internal/middleware"
	"github.com/colink/colink/internal/signaling"
	"github.com/colink/colink/internal/users"
)

// NewRouter wires the full HTTP surface: health check, auth endpoints, room
// minting and the WebSocket signaling endpoint.
func NewRouter(cfg *config.Config, hub *signaling.Hub, store users.Store) *gin.Engine {
	router := gin.Default()

	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/auth/signup", Signup(store, cfg.JWTSecret))
		apiGroup.POST("/auth/login", Login(store, cfg.JWTSecret))
		apiGroup.POST("/rooms", middleware.JWTAuth(cfg.JWTSecret), CreateRoom)
	}

	router.GET("/ws", HandleSignaling(hub, cfg.JWTSecret, cfg.RequireAuth))

	return router
}
