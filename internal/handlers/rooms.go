package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateRoomResponse carries the minted room id for the shareable link.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// CreateRoom mints a fresh opaque room id (requires authentication). The
// server keeps no metadata about it: a room exists only while someone is in
// it, so the id is nothing more than a hard-to-guess key for the invite
// link.
func CreateRoom(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	roomID := uuid.New().String()
	log.Info().Str("room", roomID).Str("user", userID.(string)).Msg("Room id minted")

	c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: roomID})
}
