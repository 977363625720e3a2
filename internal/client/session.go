package client

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// SessionState tracks one peer's negotiation progress. There is no
// "absent" state: a session that does not exist has no object.
type SessionState int

const (
	StateOfferSent SessionState = iota
	StateOfferReceived
	StateConnected
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateOfferSent:
		return "negotiating/offer-sent"
	case StateOfferReceived:
		return "negotiating/offer-received"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var errSessionClosed = errors.New("peer session closed")

// PeerSession is the negotiation state machine for one remote
// participant. The manager owns it; all transitions go through the
// session mutex so an interleaved teardown resolves cleanly to closed.
type PeerSession struct {
	peerID string
	pc     *webrtc.PeerConnection

	mu        sync.Mutex
	state     SessionState
	hasRemote bool
	// candidates received before the remote description is applied
	pending []webrtc.ICECandidateInit
}

// CreateOffer generates and installs the local offer.
func (s *PeerSession) CreateOffer() (*webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, errSessionClosed
	}
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// HandleOffer applies a remote offer and produces the local answer.
func (s *PeerSession) HandleOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, errSessionClosed
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	s.hasRemote = true
	s.drainPendingLocked()
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// HandleAnswer applies the remote answer to an offer we sent.
func (s *PeerSession) HandleAnswer(answer webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return errSessionClosed
	}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		return err
	}
	s.hasRemote = true
	s.drainPendingLocked()
	return nil
}

// AddCandidate installs a remote ICE candidate, buffering it if the
// remote description has not arrived yet.
func (s *PeerSession) AddCandidate(init webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	if !s.hasRemote {
		s.pending = append(s.pending, init)
		return nil
	}
	return s.pc.AddICECandidate(init)
}

func (s *PeerSession) drainPendingLocked() {
	for _, init := range s.pending {
		if err := s.pc.AddICECandidate(init); err != nil {
			log.Warn().Err(err).Str("module", "client.session").Str("peer", s.peerID).Msg("buffered candidate rejected")
		}
	}
	s.pending = nil
}

func (s *PeerSession) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOfferSent || s.state == StateOfferReceived {
		s.state = StateConnected
		log.Info().Str("module", "client.session").Str("peer", s.peerID).Msg("peer session established")
	}
}

func (s *PeerSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the session's resources. Idempotent; every later
// operation on the session fails with errSessionClosed.
func (s *PeerSession) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.pending = nil
	s.mu.Unlock()
	if err := s.pc.Close(); err != nil {
		log.Warn().Err(err).Str("module", "client.session").Str("peer", s.peerID).Msg("close peer connection")
	}
}
