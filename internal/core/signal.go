package core

import (
	"encoding/json"
	"fmt"

	"github.com/mvolkov/huddle/internal/domain"
)

// Kind tags an inbound signaling message.
type Kind string

const (
	KindJoinMeeting  Kind = "join-meeting"
	KindLeaveMeeting Kind = "leave-meeting"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
	KindVideoToggle  Kind = "video-toggle"
	KindAudioToggle  Kind = "audio-toggle"
)

// Signal is the closed union of inbound message kinds. Every kind is
// decoded into a struct carrying only its relevant fields, so routing
// switches over concrete types instead of probing field presence.
type Signal interface {
	Kind() Kind
}

// JoinSignal asks to add the sender to a meeting.
type JoinSignal struct {
	From    domain.ParticipantID
	Meeting domain.MeetingID
}

func (JoinSignal) Kind() Kind { return KindJoinMeeting }

// LeaveSignal removes the sender from a meeting.
type LeaveSignal struct {
	From    domain.ParticipantID
	Meeting domain.MeetingID
}

func (LeaveSignal) Kind() Kind { return KindLeaveMeeting }

// ForwardSignal carries an offer, answer or ICE candidate addressed to a
// single recipient. The payload is relayed verbatim; the server never
// parses SDP.
type ForwardSignal struct {
	Tag     Kind // KindOffer, KindAnswer or KindICECandidate
	From    domain.ParticipantID
	To      domain.ParticipantID
	Payload json.RawMessage
}

func (s ForwardSignal) Kind() Kind { return s.Tag }

// ToggleSignal replicates a local track-enable flag to one recipient, or
// to the whole meeting when To is empty.
type ToggleSignal struct {
	Tag     Kind // KindVideoToggle or KindAudioToggle
	From    domain.ParticipantID
	To      domain.ParticipantID // optional
	Meeting domain.MeetingID     // fan-out target when To is empty
	Enabled bool
}

func (s ToggleSignal) Kind() Kind { return s.Tag }

// envelope is the wire shape of a signal submission. Which optional
// fields must be present depends on Type; DecodeSignal enforces that.
type envelope struct {
	Type      Kind                 `json:"type"`
	From      domain.ParticipantID `json:"from"`
	To        domain.ParticipantID `json:"to,omitempty"`
	MeetingID domain.MeetingID     `json:"meetingId,omitempty"`
	Offer     json.RawMessage      `json:"offer,omitempty"`
	Answer    json.RawMessage      `json:"answer,omitempty"`
	Candidate json.RawMessage      `json:"candidate,omitempty"`
	Enabled   *bool                `json:"enabled,omitempty"`
}

// DecodeSignal parses and validates one signal submission. Any schema
// violation wraps ErrInvalidSignal.
func DecodeSignal(data []byte) (Signal, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if _, err := domain.ParseParticipantID(string(env.From)); err != nil {
		return nil, fmt.Errorf("%w: from: %v", ErrInvalidSignal, err)
	}

	switch env.Type {
	case KindJoinMeeting, KindLeaveMeeting:
		if env.MeetingID == "" {
			return nil, fmt.Errorf("%w: %s missing meetingId", ErrInvalidSignal, env.Type)
		}
		if env.Type == KindJoinMeeting {
			return JoinSignal{From: env.From, Meeting: env.MeetingID}, nil
		}
		return LeaveSignal{From: env.From, Meeting: env.MeetingID}, nil

	case KindOffer, KindAnswer, KindICECandidate:
		if env.To == "" {
			return nil, fmt.Errorf("%w: %s missing to", ErrInvalidSignal, env.Type)
		}
		payload := env.Offer
		switch env.Type {
		case KindAnswer:
			payload = env.Answer
		case KindICECandidate:
			payload = env.Candidate
		}
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: %s missing payload", ErrInvalidSignal, env.Type)
		}
		return ForwardSignal{Tag: env.Type, From: env.From, To: env.To, Payload: payload}, nil

	case KindVideoToggle, KindAudioToggle:
		if env.Enabled == nil {
			return nil, fmt.Errorf("%w: %s missing enabled", ErrInvalidSignal, env.Type)
		}
		if env.To == "" && env.MeetingID == "" {
			return nil, fmt.Errorf("%w: %s needs to or meetingId", ErrInvalidSignal, env.Type)
		}
		return ToggleSignal{
			Tag:     env.Type,
			From:    env.From,
			To:      env.To,
			Meeting: env.MeetingID,
			Enabled: *env.Enabled,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSignal, env.Type)
	}
}
