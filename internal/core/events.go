package core

import (
	"encoding/json"

	"github.com/mvolkov/huddle/internal/domain"
)

// Push-channel event types. Each event is one JSON object with at least
// "type"; the client switches on it.
const (
	EventConnected  = "connected"
	EventJoinAck    = "join-ack"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventError      = "error"
)

// ConnectedEvent is the synthetic acknowledgment sent the moment a push
// channel opens. The server timestamp doubles as a liveness probe and
// lets clients measure latency without trusting their own clock.
type ConnectedEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// PresenceEvent announces a join or leave to the rest of the meeting.
type PresenceEvent struct {
	Type      string           `json:"type"` // user-joined | user-left
	UserID    string           `json:"userId"`
	MeetingID domain.MeetingID `json:"meetingId"`
}

// SessionEvent carries a forwarded offer, answer or ICE candidate.
// Exactly one payload field is set, matching Type.
type SessionEvent struct {
	Type      string          `json:"type"` // offer | answer | ice-candidate
	From      string          `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ToggleEvent replicates a peer's mute/camera flag. Informational only;
// it never triggers renegotiation.
type ToggleEvent struct {
	Type    string `json:"type"` // video-toggle | audio-toggle
	From    string `json:"from"`
	Enabled bool   `json:"enabled"`
}

// JoinAckEvent is the in-band join response used by transports that have
// no request/response pair of their own (the websocket push channel).
type JoinAckEvent struct {
	Type         string   `json:"type"`
	MeetingID    string   `json:"meetingId"`
	Participants []string `json:"participants"`
}

// ErrorEvent reports a failed in-band request back over the channel.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewSessionEvent builds the forwarded event for one peer-directed
// signal, keyed by its kind.
func NewSessionEvent(tag Kind, from domain.ParticipantID, payload json.RawMessage) SessionEvent {
	ev := SessionEvent{Type: string(tag), From: string(from)}
	switch tag {
	case KindOffer:
		ev.Offer = payload
	case KindAnswer:
		ev.Answer = payload
	case KindICECandidate:
		ev.Candidate = payload
	}
	return ev
}
