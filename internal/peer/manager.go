// Package peer drives the client side of the signaling handshake: one peer
// connection per remote participant, created either toward pre-existing
// room members (initiator) or in response to an incoming offer (responder).
// The connection object itself is opaque; this package only feeds signaling
// blobs into it and never parses them.
package peer

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Connection is one peer-to-peer media connection. Implementations wrap the
// actual transport library; the manager treats every signaling blob as
// opaque.
type Connection interface {
	// Signal feeds a remote signaling blob (offer or answer) into the
	// connection.
	Signal(data json.RawMessage) error
	// OnSignal registers the sink for locally generated signaling blobs.
	OnSignal(fn func(data json.RawMessage))
	// OnStream registers the sink for the remote media stream once it
	// arrives.
	OnStream(fn func(stream any))
	// ReplaceVideoTrack swaps the outbound video track in place, without
	// renegotiation.
	ReplaceVideoTrack(track any) error
	Close() error
}

// ConnectionFactory creates connections. initiator connections generate an
// offer on their own; responder connections wait for one via Signal.
type ConnectionFactory interface {
	NewConnection(initiator bool, localMedia any) (Connection, error)
}

// Signaler sends locally generated signaling blobs to the server for
// relaying.
type Signaler interface {
	SendSignal(userToSignal, callerID string, signal json.RawMessage) error
	ReturnSignal(callerID string, signal json.RawMessage) error
}

type entry struct {
	conn   Connection
	stream any
}

// Manager owns one connection entry per remote participant and routes
// membership and signaling events into them. Each entry's handshake
// progresses independently; a departure tears its entry down at whatever
// stage it reached.
type Manager struct {
	selfID     string
	localMedia any
	factory    ConnectionFactory
	signaler   Signaler

	mu       sync.Mutex
	entries  map[string]*entry
	onStream func(remoteID string, stream any)
}

// NewManager creates a manager for a participant. selfID may be empty; the
// server stamps the authoritative sender id on every relayed signal anyway.
func NewManager(selfID string, localMedia any, factory ConnectionFactory, signaler Signaler) *Manager {
	return &Manager{
		selfID:     selfID,
		localMedia: localMedia,
		factory:    factory,
		signaler:   signaler,
		entries:    make(map[string]*entry),
	}
}

// OnStream registers the rendering layer's callback for remote streams.
// Register before feeding events into the manager.
func (m *Manager) OnStream(fn func(remoteID string, stream any)) {
	m.mu.Lock()
	m.onStream = fn
	m.mu.Unlock()
}

// HandleAllUsers starts an initiator handshake toward every pre-existing
// room member.
func (m *Manager) HandleAllUsers(ids []string) error {
	var errs []error
	for _, id := range ids {
		if id == m.selfID {
			continue
		}
		if err := m.addInitiator(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) addInitiator(remoteID string) error {
	m.mu.Lock()
	if _, ok := m.entries[remoteID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	conn, err := m.factory.NewConnection(true, m.localMedia)
	if err != nil {
		return err
	}

	conn.OnSignal(func(sig json.RawMessage) {
		if err := m.signaler.SendSignal(remoteID, m.selfID, sig); err != nil {
			log.Warn().Err(err).Str("remote", remoteID).Msg("Failed to send offer")
		}
	})
	conn.OnStream(func(stream any) {
		m.setStream(remoteID, stream)
	})

	m.store(remoteID, conn)
	return nil
}

// HandleUserJoined answers an incoming offer from a newly joined
// participant with a responder connection. A duplicate offer for an
// existing entry is ignored.
func (m *Manager) HandleUserJoined(callerID string, signal json.RawMessage) error {
	m.mu.Lock()
	if _, ok := m.entries[callerID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	conn, err := m.factory.NewConnection(false, m.localMedia)
	if err != nil {
		return err
	}

	conn.OnSignal(func(sig json.RawMessage) {
		if err := m.signaler.ReturnSignal(callerID, sig); err != nil {
			log.Warn().Err(err).Str("remote", callerID).Msg("Failed to return answer")
		}
	})
	conn.OnStream(func(stream any) {
		m.setStream(callerID, stream)
	})

	// Record the entry before feeding the offer so a departure arriving
	// mid-handshake finds something to tear down.
	m.store(callerID, conn)
	return conn.Signal(signal)
}

// HandleReturnedSignal completes an initiator handshake with the remote
// side's answer. An answer for an unknown entry is dropped.
func (m *Manager) HandleReturnedSignal(id string, signal json.RawMessage) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		log.Debug().Str("remote", id).Msg("Answer for unknown peer, dropping")
		return nil
	}
	return e.conn.Signal(signal)
}

// HandleUserLeft destroys the departed participant's entry, whatever state
// its handshake was in. Calling it again for the same id is a no-op.
func (m *Manager) HandleUserLeft(id string) {
	m.mu.Lock()
	e, ok := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := e.conn.Close(); err != nil {
		log.Warn().Err(err).Str("remote", id).Msg("Failed to close peer connection")
	}
}

// ReplaceVideoTrack swaps the outbound video track on every live
// connection. Used for screen-share start/stop; established connections
// keep running with the substituted track.
func (m *Manager) ReplaceVideoTrack(track any) error {
	m.mu.Lock()
	conns := make([]Connection, 0, len(m.entries))
	for _, e := range m.entries {
		conns = append(conns, e.conn)
	}
	m.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.ReplaceVideoTrack(track); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stream returns the remote stream for a participant, if it has arrived.
func (m *Manager) Stream(remoteID string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[remoteID]
	if !ok || e.stream == nil {
		return nil, false
	}
	return e.stream, true
}

// Peers lists the remote participants with a live entry.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down every entry, e.g. on hangup.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for id, e := range entries {
		if err := e.conn.Close(); err != nil {
			log.Warn().Err(err).Str("remote", id).Msg("Failed to close peer connection")
		}
	}
}

func (m *Manager) store(remoteID string, conn Connection) {
	m.mu.Lock()
	m.entries[remoteID] = &entry{conn: conn}
	m.mu.Unlock()
}

func (m *Manager) setStream(remoteID string, stream any) {
	m.mu.Lock()
	e, ok := m.entries[remoteID]
	if ok {
		e.stream = stream
	}
	cb := m.onStream
	m.mu.Unlock()

	// A stream arriving after the peer departed has no entry left to hang
	// it on; drop it.
	if !ok {
		return
	}
	if cb != nil {
		cb(remoteID, stream)
	}
}
