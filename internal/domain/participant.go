// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const MaxParticipantIDLen = 64

var (
	ErrParticipantIDEmpty   = errors.New("participant id empty")
	ErrParticipantIDTooLong = errors.New("participant id too long")
)

// ParticipantID is an opaque client-generated id, stable for one client
// session. Uniqueness within a meeting is advisory, not authenticated.
type ParticipantID string

func ParseParticipantID(s string) (ParticipantID, error) {
	if len(s) == 0 {
		return "", ErrParticipantIDEmpty
	}
	if len(s) > MaxParticipantIDLen {
		return "", ErrParticipantIDTooLong
	}
	return ParticipantID(s), nil
}

// Membership is one participant's presence in one meeting. Joining twice
// is idempotent and returns the existing record.
type Membership struct {
	MeetingID     MeetingID     `json:"meeting_id"`
	ParticipantID ParticipantID `json:"participant_id"`
	JoinedAt      time.Time     `json:"joined_at"`
}
