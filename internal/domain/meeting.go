package domain

import (
	"crypto/rand"
	"time"
)

type MeetingID string

// Meeting is a named session participants join to exchange media.
// A meeting with zero participants does not persist; the directory
// deletes it when the last membership is removed.
type Meeting struct {
	ID        MeetingID     `json:"id"`
	HostID    ParticipantID `json:"host_id"`
	CreatedAt time.Time     `json:"created_at"`
}

const (
	meetingCodeLen      = 8
	meetingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewMeetingCode returns a short opaque meeting code. Collisions are the
// caller's problem: directories retry generation until the code is unused.
func NewMeetingCode() MeetingID {
	buf := make([]byte, meetingCodeLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		panic(err)
	}
	for i, b := range buf {
		buf[i] = meetingCodeAlphabet[int(b)%len(meetingCodeAlphabet)]
	}
	return MeetingID(buf)
}
