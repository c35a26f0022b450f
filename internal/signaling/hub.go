package signaling

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/colink/colink/internal/models"
)

// Hub owns the session table and the room registry and performs all message
// routing. Every delivery is best-effort: a target without an open session
// is silently skipped, since the sender cannot tell "not yet connected"
// from "already left" and no retry would help.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *Registry
}

func NewHub(roomCapacity int) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		registry: NewRegistry(roomCapacity),
	}
}

// Registry exposes the room registry for membership lookups.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect wraps an upgraded WebSocket connection in a new Session with a
// freshly assigned participant id and registers it with the hub. The caller
// starts the session's pumps.
func (h *Hub) Connect(conn *websocket.Conn) *Session {
	s := newSession(h, conn)
	h.register(s)
	log.Info().Str("peer", s.ID).Msg("Peer connected")
	return s
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// Join runs the admission path for a session. A full room answers with the
// "room full" event and leaves the session roomless; otherwise the session
// receives the pre-existing members so it can start one handshake per peer.
// A session already in a room cannot switch; the request is dropped.
func (h *Hub) Join(s *Session, roomID string) {
	if current, ok := h.registry.RoomOf(s.ID); ok {
		log.Warn().Str("peer", s.ID).Str("room", current).Msg("Join ignored, already in a room")
		return
	}

	existing, admitted := h.registry.Join(roomID, s.ID)
	if !admitted {
		log.Info().Str("peer", s.ID).Str("room", roomID).Msg("Room full, join refused")
		s.enqueue(models.EventRoomFull, nil)
		return
	}

	log.Info().Str("peer", s.ID).Str("room", roomID).Int("existing", len(existing)).Msg("Peer joined room")
	s.enqueue(models.EventAllUsers, existing)
}

// RelaySignal forwards an offer to the addressed peer. The caller id on the
// delivered event is the sender's session id, whatever the payload claimed.
func (h *Hub) RelaySignal(from *Session, p models.SendingSignal) {
	h.sendTo(p.UserToSignal, models.EventUserJoined, models.UserJoined{
		Signal:   p.Signal,
		CallerID: from.ID,
	})
}

// ReturnSignal forwards an answer back to the offer's originator.
func (h *Hub) ReturnSignal(from *Session, p models.ReturningSignal) {
	h.sendTo(p.CallerID, models.EventReturnedSignal, models.ReturnedSignal{
		Signal: p.Signal,
		ID:     from.ID,
	})
}

// BroadcastChat fans a chat message out to the sender's roommates.
func (h *Hub) BroadcastChat(from *Session, p models.ChatMessage) {
	h.broadcast(from, models.EventReceiveMessage, models.ChatMessage{
		Message: p.Message,
		Sender:  from.ID,
	})
}

// BroadcastTranslation fans a live-caption payload out to the sender's
// roommates.
func (h *Hub) BroadcastTranslation(from *Session, p models.Translation) {
	h.broadcast(from, models.EventReceiveTranslation, models.Translation{
		Translation: p.Translation,
		Telugu:      p.Telugu,
		Sender:      from.ID,
	})
}

// broadcast delivers an event to every current member of the sender's room
// except the sender, against live membership. A sender in no room is a
// no-op.
func (h *Hub) broadcast(from *Session, event string, data any) {
	roomID, ok := h.registry.RoomOf(from.ID)
	if !ok {
		return
	}
	for _, id := range h.registry.Members(roomID) {
		if id != from.ID {
			h.sendTo(id, event, data)
		}
	}
}

// sendTo enqueues while holding the session table lock so that Disconnect
// cannot close the target's send channel mid-delivery.
func (h *Hub) sendTo(participantID, event string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	target, ok := h.sessions[participantID]
	if !ok {
		log.Debug().Str("target", participantID).Str("event", event).Msg("Target not connected, dropping")
		return
	}
	target.enqueue(event, data)
}

// Disconnect tears a session down: leave the room, notify the survivors,
// release the session. Safe to call any number of times; only the first
// call does anything.
func (h *Hub) Disconnect(s *Session) {
	s.teardown.Do(func() {
		roomID, remaining := h.registry.Leave(s.ID)

		h.mu.Lock()
		delete(h.sessions, s.ID)
		h.mu.Unlock()

		for _, id := range remaining {
			h.sendTo(id, models.EventUserLeft, s.ID)
		}

		close(s.send)

		if roomID != "" {
			log.Info().Str("peer", s.ID).Str("room", roomID).Int("remaining", len(remaining)).Msg("Peer left room")
		} else {
			log.Info().Str("peer", s.ID).Msg("Peer disconnected")
		}
	})
}
