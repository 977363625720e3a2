package client

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
)

func newTestSession(t *testing.T, state SessionState) *PeerSession {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	// a data channel guarantees the offer carries a media section
	if _, err := pc.CreateDataChannel("signaling-test", nil); err != nil {
		t.Fatal(err)
	}
	s := &PeerSession{peerID: "peer", pc: pc, state: state}
	t.Cleanup(s.Close)
	return s
}

func TestPeerSession_OfferAnswerExchange(t *testing.T) {
	caller := newTestSession(t, StateOfferSent)
	callee := newTestSession(t, StateOfferReceived)

	offer, err := caller.CreateOffer()
	if err != nil {
		t.Fatal(err)
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		t.Fatalf("bad offer %+v", offer)
	}

	answer, err := callee.HandleOffer(*offer)
	if err != nil {
		t.Fatal(err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("bad answer %+v", answer)
	}

	if err := caller.HandleAnswer(*answer); err != nil {
		t.Fatal(err)
	}

	if caller.State() != StateOfferSent || callee.State() != StateOfferReceived {
		t.Errorf("negotiation must not change state before the link comes up: %v %v",
			caller.State(), callee.State())
	}

	caller.markConnected()
	if caller.State() != StateConnected {
		t.Errorf("state %v after markConnected", caller.State())
	}
}

func TestPeerSession_BuffersEarlyCandidates(t *testing.T) {
	caller := newTestSession(t, StateOfferSent)
	callee := newTestSession(t, StateOfferReceived)

	init := webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706433 127.0.0.1 54321 typ host",
	}
	// no remote description yet: must buffer, not fail
	if err := callee.AddCandidate(init); err != nil {
		t.Fatalf("early candidate rejected: %v", err)
	}
	if len(callee.pending) != 1 {
		t.Fatalf("candidate not buffered, pending=%d", len(callee.pending))
	}

	offer, err := caller.CreateOffer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := callee.HandleOffer(*offer); err != nil {
		t.Fatal(err)
	}
	if len(callee.pending) != 0 {
		t.Error("buffered candidates not drained after the remote description")
	}

	// with the remote description in place candidates apply directly
	if err := callee.AddCandidate(init); err != nil {
		t.Fatalf("late candidate rejected: %v", err)
	}
}

func TestPeerSession_CloseIsTerminal(t *testing.T) {
	s := newTestSession(t, StateOfferSent)
	s.Close()
	s.Close()

	if s.State() != StateClosed {
		t.Fatalf("state %v after close", s.State())
	}
	if _, err := s.CreateOffer(); !errors.Is(err, errSessionClosed) {
		t.Errorf("CreateOffer after close: %v", err)
	}
	if err := s.HandleAnswer(webrtc.SessionDescription{}); !errors.Is(err, errSessionClosed) {
		t.Errorf("HandleAnswer after close: %v", err)
	}
	// late candidates are discarded, not an error
	if err := s.AddCandidate(webrtc.ICECandidateInit{}); err != nil {
		t.Errorf("AddCandidate after close: %v", err)
	}

	s.markConnected()
	if s.State() != StateClosed {
		t.Error("markConnected resurrected a closed session")
	}
}

func TestSessionState_String(t *testing.T) {
	for state, want := range map[SessionState]string{
		StateOfferSent:     "negotiating/offer-sent",
		StateOfferReceived: "negotiating/offer-received",
		StateConnected:     "connected",
		StateClosed:        "closed",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
