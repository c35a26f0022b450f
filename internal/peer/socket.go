package peer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/colink/colink/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Handler receives the ancillary room events a UI cares about. Nil fields
// are skipped.
type Handler struct {
	OnAdmitted    func(existing []string)
	OnChat        func(models.ChatMessage)
	OnTranslation func(models.Translation)
	OnRoomFull    func()
}

// Socket is the client end of the signaling connection. It implements
// Signaler, so it plugs straight into a Manager.
type Socket struct {
	conn     *websocket.Conn
	outgoing chan models.Envelope
	done     chan struct{}
}

// Dial connects to the signaling server. token may be empty when the server
// does not require auth on the socket.
func Dial(serverURL, token string) (*Socket, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s := &Socket{
		conn:     conn,
		outgoing: make(chan models.Envelope, 16),
		done:     make(chan struct{}),
	}
	go s.writePump()
	return s, nil
}

// JoinRoom requests admission to a room. The outcome arrives as either the
// "all users" or the "room full" event.
func (s *Socket) JoinRoom(roomID string) error {
	return s.emit(models.EventJoinRoom, roomID)
}

// SendChat broadcasts a chat message to the other room members.
func (s *Socket) SendChat(message string) error {
	return s.emit(models.EventSendMessage, models.ChatMessage{Message: message})
}

// SendTranslation broadcasts a caption payload to the other room members.
func (s *Socket) SendTranslation(translation, telugu string) error {
	return s.emit(models.EventSendTranslation, models.Translation{
		Translation: translation,
		Telugu:      telugu,
	})
}

// SendSignal implements Signaler for outbound offers.
func (s *Socket) SendSignal(userToSignal, callerID string, signal json.RawMessage) error {
	return s.emit(models.EventSendingSignal, models.SendingSignal{
		UserToSignal: userToSignal,
		CallerID:     callerID,
		Signal:       signal,
	})
}

// ReturnSignal implements Signaler for answers.
func (s *Socket) ReturnSignal(callerID string, signal json.RawMessage) error {
	return s.emit(models.EventReturningSignal, models.ReturningSignal{
		Signal:   signal,
		CallerID: callerID,
	})
}

func (s *Socket) emit(event string, data any) error {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	select {
	case s.outgoing <- env:
		return nil
	case <-s.done:
		return fmt.Errorf("socket closed")
	}
}

// Run reads server events and dispatches them into the manager and handler
// until the connection closes. It blocks; run it on its own goroutine if
// the caller has other work.
func (s *Socket) Run(m *Manager, h Handler) error {
	defer s.conn.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env models.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				return err
			}
			return nil
		}
		s.dispatch(env, m, h)
	}
}

func (s *Socket) dispatch(env models.Envelope, m *Manager, h Handler) {
	switch env.Event {
	case models.EventAllUsers:
		var ids []string
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			log.Warn().Err(err).Msg("Malformed membership list")
			return
		}
		if err := m.HandleAllUsers(ids); err != nil {
			log.Warn().Err(err).Msg("Failed to start handshakes")
		}
		if h.OnAdmitted != nil {
			h.OnAdmitted(ids)
		}

	case models.EventRoomFull:
		if h.OnRoomFull != nil {
			h.OnRoomFull()
		}

	case models.EventUserJoined:
		var p models.UserJoined
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Msg("Malformed offer event")
			return
		}
		if err := m.HandleUserJoined(p.CallerID, p.Signal); err != nil {
			log.Warn().Err(err).Str("remote", p.CallerID).Msg("Failed to answer offer")
		}

	case models.EventReturnedSignal:
		var p models.ReturnedSignal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Warn().Err(err).Msg("Malformed answer event")
			return
		}
		if err := m.HandleReturnedSignal(p.ID, p.Signal); err != nil {
			log.Warn().Err(err).Str("remote", p.ID).Msg("Failed to complete handshake")
		}

	case models.EventReceiveMessage:
		var p models.ChatMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if h.OnChat != nil {
			h.OnChat(p)
		}

	case models.EventReceiveTranslation:
		var p models.Translation
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if h.OnTranslation != nil {
			h.OnTranslation(p)
		}

	case models.EventUserLeft:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil {
			return
		}
		m.HandleUserLeft(id)

	default:
		log.Debug().Str("event", env.Event).Msg("Unknown server event")
	}
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case env := <-s.outgoing:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Close signals a clean hangup to the server.
func (s *Socket) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
