package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
)

// pushEvent is the decoded shape of one push-channel message.
type pushEvent struct {
	Type      string                     `json:"type"`
	UserID    string                     `json:"userId,omitempty"`
	MeetingID string                     `json:"meetingId,omitempty"`
	From      string                     `json:"from,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Enabled   *bool                      `json:"enabled,omitempty"`
	Timestamp string                     `json:"timestamp,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

func DefaultRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"stun:stun1.l.google.com:19302"}},
		},
	}
}

type Option func(*Manager)

// WithRTCConfig overrides the ICE server configuration.
func WithRTCConfig(cfg webrtc.Configuration) Option {
	return func(m *Manager) { m.rtcConfig = cfg }
}

// WithLocalTracks sets the outbound media tracks shared by every peer
// session. The caller owns capture; the manager only attaches.
func WithLocalTracks(tracks ...webrtc.TrackLocal) Option {
	return func(m *Manager) { m.localTracks = tracks }
}

// WithOnTrack registers the callback invoked for each inbound media
// track, tagged with the peer it came from.
func WithOnTrack(fn func(peerID string, track *webrtc.TrackRemote)) Option {
	return func(m *Manager) { m.onTrack = fn }
}

// WithOnPeerClosed registers the callback invoked after a peer session
// is torn down, so the application can drop the peer's tile.
func WithOnPeerClosed(fn func(peerID string)) Option {
	return func(m *Manager) { m.onPeerClosed = fn }
}

// WithOnPeerToggle registers the callback for peers' mute/camera flags.
func WithOnPeerToggle(fn func(peerID, kind string, enabled bool)) Option {
	return func(m *Manager) { m.onPeerToggle = fn }
}

// Manager owns one negotiation state machine per remote peer and drives
// offer/answer/candidate exchange through the relay. Sessions are
// independent: one failing never touches the others.
type Manager struct {
	userID    string
	transport *Transport
	rtcConfig webrtc.Configuration

	mu       sync.Mutex
	sessions map[string]*PeerSession
	// peers seen in user-left since the last join; offers from them are
	// dropped instead of building a session for a departed peer
	departed  map[string]struct{}
	meetingID string

	localTracks  []webrtc.TrackLocal
	onTrack      func(peerID string, track *webrtc.TrackRemote)
	onPeerClosed func(peerID string)
	onPeerToggle func(peerID, kind string, enabled bool)
}

func NewManager(userID string, transport *Transport, opts ...Option) *Manager {
	m := &Manager{
		userID:    userID,
		transport: transport,
		rtcConfig: DefaultRTCConfig(),
		sessions:  make(map[string]*PeerSession),
		departed:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join enters the meeting and initiates negotiation with every
// participant already present. Returns their ids.
func (m *Manager) Join(ctx context.Context, meetingID string) ([]string, error) {
	peers, err := m.transport.Join(ctx, m.userID, meetingID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.meetingID = meetingID
	m.mu.Unlock()

	for _, peerID := range peers {
		if peerID == m.userID {
			continue
		}
		m.initiate(ctx, peerID)
	}
	return peers, nil
}

// Leave notifies the relay and tears down every session.
func (m *Manager) Leave(ctx context.Context) error {
	m.mu.Lock()
	meetingID := m.meetingID
	m.meetingID = ""
	m.mu.Unlock()
	if meetingID == "" {
		return nil
	}
	err := m.transport.Send(ctx, signalRequest{
		Type:      string(core.KindLeaveMeeting),
		From:      m.userID,
		MeetingID: meetingID,
	})
	m.closeAll()
	return err
}

// Run consumes the push channel until ctx is done. The stream is a
// single ordered consumer: events for different peers may interleave
// but are processed in arrival order, so an offer followed by a
// user-left for the same peer deterministically ends closed.
func (m *Manager) Run(ctx context.Context) error {
	events := make(chan []byte, 32)
	go m.transport.Listen(ctx, m.userID, events)

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return ctx.Err()
		case data, ok := <-events:
			if !ok {
				m.closeAll()
				return ctx.Err()
			}
			m.handleEvent(ctx, data)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, data []byte) {
	var ev pushEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "client.manager").Msg("bad push event")
		return
	}
	if ev.Type == core.EventConnected {
		// the ack carries our own id; the server timestamp gives a
		// clock-skew-free latency sample
		if ts, err := time.Parse(time.RFC3339, ev.Timestamp); err == nil {
			log.Info().Str("module", "client.manager").Dur("skew", time.Since(ts)).Msg("push channel connected")
		}
		return
	}
	if ev.From == m.userID || ev.UserID == m.userID {
		return // never act on our own echo
	}

	switch ev.Type {
	case core.EventUserJoined:
		m.initiate(ctx, ev.UserID)

	case core.EventUserLeft:
		m.mu.Lock()
		m.departed[ev.UserID] = struct{}{}
		m.mu.Unlock()
		m.closePeer(ev.UserID)

	case string(core.KindOffer):
		if ev.Offer == nil {
			return
		}
		m.acceptOffer(ctx, ev.From, *ev.Offer)

	case string(core.KindAnswer):
		if ev.Answer == nil {
			return
		}
		if s, ok := m.session(ev.From); ok {
			if err := s.HandleAnswer(*ev.Answer); err != nil {
				log.Warn().Err(err).Str("module", "client.manager").Str("peer", ev.From).Msg("apply answer")
			}
		}

	case string(core.KindICECandidate):
		if ev.Candidate == nil {
			return
		}
		if s, ok := m.session(ev.From); ok {
			if err := s.AddCandidate(*ev.Candidate); err != nil {
				log.Warn().Err(err).Str("module", "client.manager").Str("peer", ev.From).Msg("add candidate")
			}
		}

	case string(core.KindAudioToggle), string(core.KindVideoToggle):
		if m.onPeerToggle != nil && ev.Enabled != nil {
			m.onPeerToggle(ev.From, ev.Type, *ev.Enabled)
		}

	case core.EventError:
		log.Warn().Str("module", "client.manager").Str("error", ev.Error).Msg("relay error event")
	}
}

// initiate starts the offer-sent path toward a newly observed peer. A
// peer with a live session is left alone.
func (m *Manager) initiate(ctx context.Context, peerID string) {
	m.mu.Lock()
	delete(m.departed, peerID) // a fresh sighting lifts the block
	if _, exists := m.sessions[peerID]; exists {
		m.mu.Unlock()
		return
	}
	s, err := m.newPeerSession(peerID, StateOfferSent)
	if err != nil {
		m.mu.Unlock()
		log.Error().Err(err).Str("module", "client.manager").Str("peer", peerID).Msg("create peer session")
		return
	}
	m.sessions[peerID] = s
	m.mu.Unlock()

	offer, err := s.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "client.manager").Str("peer", peerID).Msg("create offer")
		m.closePeer(peerID)
		return
	}
	err = m.transport.Send(ctx, signalRequest{
		Type:  string(core.KindOffer),
		From:  m.userID,
		To:    peerID,
		Offer: offer,
	})
	if err != nil {
		// per-peer negotiation is not retried; the session dies here
		// and gets cleaned up, never resumed
		log.Warn().Err(err).Str("module", "client.manager").Str("peer", peerID).Msg("send offer")
		m.closePeer(peerID)
	}
}

// acceptOffer runs the offer-received path for a peer that beat us to
// the offer.
func (m *Manager) acceptOffer(ctx context.Context, peerID string, offer webrtc.SessionDescription) {
	m.mu.Lock()
	s, exists := m.sessions[peerID]
	if !exists {
		// an offer ordered after the peer's user-left must not build a
		// new session; the peer is gone and the answer would go nowhere
		if _, gone := m.departed[peerID]; gone {
			m.mu.Unlock()
			log.Warn().Str("module", "client.manager").Str("peer", peerID).Msg("offer from departed peer, dropped")
			return
		}
		var err error
		s, err = m.newPeerSession(peerID, StateOfferReceived)
		if err != nil {
			m.mu.Unlock()
			log.Error().Err(err).Str("module", "client.manager").Str("peer", peerID).Msg("create peer session")
			return
		}
		m.sessions[peerID] = s
	}
	m.mu.Unlock()

	answer, err := s.HandleOffer(offer)
	if err != nil {
		log.Warn().Err(err).Str("module", "client.manager").Str("peer", peerID).Msg("apply offer")
		return
	}
	err = m.transport.Send(ctx, signalRequest{
		Type:   string(core.KindAnswer),
		From:   m.userID,
		To:     peerID,
		Answer: answer,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "client.manager").Str("peer", peerID).Msg("send answer")
		m.closePeer(peerID)
	}
}

// newPeerSession builds the pion connection with the shared outbound
// tracks attached. Caller holds m.mu.
func (m *Manager) newPeerSession(peerID string, state SessionState) (*PeerSession, error) {
	pc, err := webrtc.NewPeerConnection(m.rtcConfig)
	if err != nil {
		return nil, err
	}
	s := &PeerSession{peerID: peerID, pc: pc, state: state}

	for _, track := range m.localTracks {
		if _, err := pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		err := m.transport.Send(context.Background(), signalRequest{
			Type:      string(core.KindICECandidate),
			From:      m.userID,
			To:        peerID,
			Candidate: &init,
		})
		if err != nil {
			log.Debug().Err(err).Str("module", "client.manager").Str("peer", peerID).Msg("send candidate")
		}
	})

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Info().Str("module", "client.manager").Str("peer", peerID).Str("state", st.String()).Msg("peer connection state")
		switch st {
		case webrtc.PeerConnectionStateConnected:
			s.markConnected()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			m.closePeer(peerID)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		// inbound media doubles as an implicit "established" signal
		s.markConnected()
		if m.onTrack != nil {
			m.onTrack(peerID, track)
		}
	})

	return s, nil
}

func (m *Manager) session(peerID string) (*PeerSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[peerID]
	return s, ok
}

// SessionState reports the negotiation state for one peer.
func (m *Manager) SessionState(peerID string) (SessionState, bool) {
	s, ok := m.session(peerID)
	if !ok {
		return 0, false
	}
	return s.State(), true
}

// Peers lists the remote participants with live sessions.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// SetAudio replicates the local audio flag to the meeting. Purely
// informational: tracks are enabled/disabled by their owner and the
// session is never renegotiated.
func (m *Manager) SetAudio(ctx context.Context, enabled bool) error {
	return m.sendToggle(ctx, core.KindAudioToggle, enabled)
}

// SetVideo replicates the local video flag to the meeting.
func (m *Manager) SetVideo(ctx context.Context, enabled bool) error {
	return m.sendToggle(ctx, core.KindVideoToggle, enabled)
}

func (m *Manager) sendToggle(ctx context.Context, kind core.Kind, enabled bool) error {
	m.mu.Lock()
	meetingID := m.meetingID
	m.mu.Unlock()
	if meetingID == "" {
		return nil
	}
	return m.transport.Send(ctx, signalRequest{
		Type:      string(kind),
		From:      m.userID,
		MeetingID: meetingID,
		Enabled:   &enabled,
	})
}

func (m *Manager) closePeer(peerID string) {
	m.mu.Lock()
	s, ok := m.sessions[peerID]
	if ok {
		delete(m.sessions, peerID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	if m.onPeerClosed != nil {
		m.onPeerClosed(peerID)
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*PeerSession)
	m.departed = make(map[string]struct{})
	m.mu.Unlock()
	for peerID, s := range sessions {
		s.Close()
		if m.onPeerClosed != nil {
			m.onPeerClosed(peerID)
		}
	}
}
