package core

import (
	"context"

	"github.com/mvolkov/huddle/internal/domain"
)

// Event is an encoded push-channel payload (one JSON object).
type Event []byte

// PushConn abstracts one participant's live server-to-client channel.
// Owned by the adapter; the adapter must Close() it. TrySend never
// blocks: it enqueues or reports backpressure.
type PushConn interface {
	TrySend(Event) error
	Close()
}

// Directory is the external meeting/membership store consulted by the
// router. It is the single source of truth for membership; the relay
// never caches it across requests.
type Directory interface {
	// CreateMeeting mints an unused meeting code, persists the meeting
	// and joins the host to it.
	CreateMeeting(ctx context.Context, host domain.ParticipantID) (domain.MeetingID, error)

	// IsActive reports whether the meeting currently exists.
	IsActive(ctx context.Context, id domain.MeetingID) (bool, error)

	// Join adds the participant to the meeting. Joining twice returns the
	// existing membership. A missing meeting yields ErrMeetingNotFound.
	Join(ctx context.Context, id domain.MeetingID, pid domain.ParticipantID) (domain.Membership, error)

	// Leave removes the membership; removing the last one deletes the
	// meeting. Leaving a meeting one is not in is a no-op.
	Leave(ctx context.Context, id domain.MeetingID, pid domain.ParticipantID) error

	// ListParticipants returns the ids of every current member. A missing
	// meeting yields an empty list, not an error.
	ListParticipants(ctx context.Context, id domain.MeetingID) ([]domain.ParticipantID, error)
}
