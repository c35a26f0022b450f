package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/colink/colink/internal/middleware"
	"github.com/colink/colink/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// HandleSignaling upgrades the connection and hands it to the hub. When
// requireAuth is set, the client must present a valid token as a query
// parameter (browsers cannot set headers on WebSocket requests).
func HandleSignaling(hub *signaling.Hub, jwtSecret string, requireAuth bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if requireAuth {
			token := c.Query("token")
			if token == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
				return
			}
			if _, err := middleware.ParseToken(jwtSecret, token); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Msg("Failed to upgrade connection")
			return
		}

		session := hub.Connect(conn)
		go session.WritePump()
		go session.ReadPump()
	}
}
