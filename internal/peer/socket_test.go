package peer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colink/colink/internal/handlers"
	"github.com/colink/colink/internal/models"
	"github.com/colink/colink/internal/signaling"
)

// autoConn emulates a handshaking peer connection: an initiator emits its
// offer as soon as a signal sink is wired, a responder answers the offer it
// is fed, and both report a remote stream once the handshake completes.
type autoConn struct {
	initiator bool

	mu       sync.Mutex
	onSignal func(json.RawMessage)
	onStream func(any)
}

func (c *autoConn) OnSignal(fn func(json.RawMessage)) {
	c.mu.Lock()
	c.onSignal = fn
	c.mu.Unlock()
	if c.initiator {
		fn(json.RawMessage(`{"type":"offer"}`))
	}
}

func (c *autoConn) OnStream(fn func(any)) {
	c.mu.Lock()
	c.onStream = fn
	c.mu.Unlock()
}

func (c *autoConn) Signal(data json.RawMessage) error {
	c.mu.Lock()
	emitSignal := c.onSignal
	emitStream := c.onStream
	c.mu.Unlock()

	if !c.initiator && emitSignal != nil {
		emitSignal(json.RawMessage(`{"type":"answer"}`))
	}
	if emitStream != nil {
		emitStream("remote-stream")
	}
	return nil
}

func (c *autoConn) ReplaceVideoTrack(any) error { return nil }
func (c *autoConn) Close() error                { return nil }

type autoFactory struct{}

func (autoFactory) NewConnection(initiator bool, _ any) (Connection, error) {
	return &autoConn{initiator: initiator}, nil
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	hub := signaling.NewHub(4)
	router.GET("/ws", handlers.HandleSignaling(hub, "", false))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func connect(t *testing.T, srv *httptest.Server, h Handler) (*Socket, *Manager) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	sock, err := Dial(url, "")
	require.NoError(t, err)
	t.Cleanup(sock.Close)

	m := NewManager("", "local-media", autoFactory{}, sock)
	go sock.Run(m, h)
	return sock, m
}

func TestMeshHandshakeAndChat(t *testing.T) {
	srv := startServer(t)

	chatA := make(chan models.ChatMessage, 1)
	sockA, mA := connect(t, srv, Handler{
		OnChat: func(msg models.ChatMessage) { chatA <- msg },
	})
	require.NoError(t, sockA.JoinRoom("room"))

	sockB, mB := connect(t, srv, Handler{})
	require.NoError(t, sockB.JoinRoom("room"))

	// B initiates toward the pre-existing member, A answers, both end up
	// with a streaming entry for the other.
	waitForStream := func(m *Manager) func() bool {
		return func() bool {
			peers := m.Peers()
			if len(peers) != 1 {
				return false
			}
			_, ok := m.Stream(peers[0])
			return ok
		}
	}
	require.Eventually(t, waitForStream(mB), 2*time.Second, 10*time.Millisecond, "initiator never completed")
	require.Eventually(t, waitForStream(mA), 2*time.Second, 10*time.Millisecond, "responder never completed")

	// Chat fans out from B to A but not back to B.
	require.NoError(t, sockB.SendChat("hello"))
	select {
	case msg := <-chatA:
		assert.Equal(t, "hello", msg.Message)
		assert.NotEmpty(t, msg.Sender)
	case <-time.After(2 * time.Second):
		t.Fatal("chat message never arrived")
	}

	// B hangs up; A tears down its entry on the departure notification.
	sockB.Close()
	require.Eventually(t, func() bool {
		return len(mA.Peers()) == 0
	}, 2*time.Second, 10*time.Millisecond, "departure never cleaned up")
}

func TestRoomFullReachesHandler(t *testing.T) {
	srv := startServer(t)

	admitted := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		sock, _ := connect(t, srv, Handler{
			OnAdmitted: func([]string) { admitted <- struct{}{} },
		})
		require.NoError(t, sock.JoinRoom("packed"))
		select {
		case <-admitted:
		case <-time.After(2 * time.Second):
			t.Fatalf("client %d was never admitted", i)
		}
	}

	full := make(chan struct{}, 1)
	sock, _ := connect(t, srv, Handler{
		OnRoomFull: func() { full <- struct{}{} },
	})
	require.NoError(t, sock.JoinRoom("packed"))

	select {
	case <-full:
	case <-time.After(2 * time.Second):
		t.Fatal("room full never arrived")
	}
}
