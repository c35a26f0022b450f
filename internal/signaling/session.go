package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/colink/colink/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs fit comfortably.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// Session is one participant's transport connection. It exists from upgrade
// until the socket closes; joining a room binds it to that room in the
// registry, and teardown runs exactly once no matter how many times the
// transport reports closure.
type Session struct {
	ID string

	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	teardown sync.Once
}

func newSession(hub *Hub, conn *websocket.Conn) *Session {
	return &Session{
		ID:   uuid.New().String(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// enqueue hands an event to the session's write pump. Delivery is
// best-effort: a full buffer drops the message rather than blocking the
// caller.
func (s *Session) enqueue(event string, data any) {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal event payload")
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal envelope")
		return
	}

	select {
	case s.send <- raw:
	default:
		log.Warn().Str("peer", s.ID).Str("event", event).Msg("Send buffer full, dropping message")
	}
}

// ReadPump reads signaling frames off the socket and routes them through
// the hub until the connection dies. It must be the connection's only
// reader.
func (s *Session) ReadPump() {
	defer func() {
		s.hub.Disconnect(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("peer", s.ID).Msg("WebSocket read error")
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Warn().Err(err).Str("peer", s.ID).Msg("Ignoring malformed frame")
			continue
		}
		s.dispatch(env)
	}
}

// dispatch routes one inbound envelope. Payloads that do not decode are
// dropped without touching shared state.
func (s *Session) dispatch(env models.Envelope) {
	switch env.Event {
	case models.EventJoinRoom:
		var roomID string
		if err := json.Unmarshal(env.Data, &roomID); err != nil || roomID == "" {
			log.Warn().Str("peer", s.ID).Msg("Ignoring malformed join request")
			return
		}
		s.hub.Join(s, roomID)

	case models.EventSendingSignal:
		var p models.SendingSignal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Str("peer", s.ID).Msg("Ignoring malformed offer")
			return
		}
		s.hub.RelaySignal(s, p)

	case models.EventReturningSignal:
		var p models.ReturningSignal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Str("peer", s.ID).Msg("Ignoring malformed answer")
			return
		}
		s.hub.ReturnSignal(s, p)

	case models.EventSendMessage:
		var p models.ChatMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Str("peer", s.ID).Msg("Ignoring malformed chat message")
			return
		}
		s.hub.BroadcastChat(s, p)

	case models.EventSendTranslation:
		var p models.Translation
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Str("peer", s.ID).Msg("Ignoring malformed translation")
			return
		}
		s.hub.BroadcastTranslation(s, p)

	default:
		log.Warn().Str("peer", s.ID).Str("event", env.Event).Msg("Unknown event")
	}
}

// WritePump drains the send buffer onto the socket and keeps the connection
// alive with pings. It must be the connection's only writer.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub tore this session down.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				log.Debug().Err(err).Str("peer", s.ID).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
