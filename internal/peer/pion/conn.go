// Package pion implements the peer.Connection seam on top of pion/webrtc.
// Signaling is non-trickle: each side emits exactly one blob, the complete
// session description with all ICE candidates gathered.
package pion

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/colink/colink/internal/peer"
)

// Media is the local capture handed to every outbound connection.
type Media struct {
	Tracks []webrtc.TrackLocal
}

// Factory builds pion-backed connections sharing one ICE configuration.
type Factory struct {
	config webrtc.Configuration
}

func NewFactory(stunServers []string) *Factory {
	return &Factory{
		config: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
		},
	}
}

// NewConnection implements peer.ConnectionFactory. localMedia must be a
// *Media; an initiator starts generating its offer immediately.
func (f *Factory) NewConnection(initiator bool, localMedia any) (peer.Connection, error) {
	media, ok := localMedia.(*Media)
	if !ok || media == nil {
		return nil, fmt.Errorf("local media must be a *pion.Media")
	}

	pc, err := webrtc.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	for _, track := range media.Tracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to attach local track: %w", err)
		}
	}

	c := &conn{pc: pc, initiator: initiator}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.mu.Lock()
		fn := c.onStream
		c.mu.Unlock()
		if fn != nil {
			fn(track)
		}
	})

	if initiator {
		go c.offer()
	}
	return c, nil
}

type conn struct {
	pc        *webrtc.PeerConnection
	initiator bool

	mu       sync.Mutex
	onSignal func(json.RawMessage)
	onStream func(any)
	pending  []json.RawMessage
}

// emit delivers a locally generated description, buffering it until the
// manager has wired its OnSignal sink.
func (c *conn) emit(desc *webrtc.SessionDescription) {
	raw, err := json.Marshal(desc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal session description")
		return
	}

	c.mu.Lock()
	fn := c.onSignal
	if fn == nil {
		c.pending = append(c.pending, raw)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn(raw)
}

// offer runs the initiator half: create, apply, gather, emit.
func (c *conn) offer() {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create offer")
		return
	}
	gathered := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		log.Error().Err(err).Msg("Failed to set local description")
		return
	}
	<-gathered
	c.emit(c.pc.LocalDescription())
}

// Signal feeds the remote description in. A responder receiving an offer
// produces and emits its answer; an initiator receiving an answer completes
// the handshake.
func (c *conn) Signal(data json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return fmt.Errorf("malformed session description: %w", err)
	}

	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	if desc.Type != webrtc.SDPTypeOffer {
		return nil
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	<-gathered
	c.emit(c.pc.LocalDescription())
	return nil
}

func (c *conn) OnSignal(fn func(json.RawMessage)) {
	c.mu.Lock()
	c.onSignal = fn
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, raw := range pending {
		fn(raw)
	}
}

func (c *conn) OnStream(fn func(any)) {
	c.mu.Lock()
	c.onStream = fn
	c.mu.Unlock()
}

// ReplaceVideoTrack swaps the transmitted video track on the existing
// sender. No renegotiation happens; the far side keeps decoding the same
// m-line.
func (c *conn) ReplaceVideoTrack(track any) error {
	t, ok := track.(webrtc.TrackLocal)
	if !ok {
		return fmt.Errorf("track must be a webrtc.TrackLocal")
	}
	if t.Kind() != webrtc.RTPCodecTypeVideo {
		return fmt.Errorf("track must be video, got %s", t.Kind())
	}

	for _, sender := range c.pc.GetSenders() {
		current := sender.Track()
		if current != nil && current.Kind() == webrtc.RTPCodecTypeVideo {
			return sender.ReplaceTrack(t)
		}
	}
	return fmt.Errorf("no video sender on connection")
}

func (c *conn) Close() error {
	return c.pc.Close()
}
