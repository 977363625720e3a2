package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
	"github.com/mvolkov/huddle/internal/domain"
)

// Router dispatches validated signals: it mutates membership through the
// directory, fans presence out through the notifier and forwards
// peer-directed messages by registry lookup. It holds no membership
// state of its own.
type Router struct {
	dir    core.Directory
	reg    *Registry
	notify *Notifier

	// grace is how long an unregistered participant may stay silent
	// before a leave is synthesized on its behalf.
	grace time.Duration
}

func NewRouter(dir core.Directory, reg *Registry, grace time.Duration) *Router {
	return &Router{
		dir:    dir,
		reg:    reg,
		notify: NewNotifier(reg),
		grace:  grace,
	}
}

// Join adds the sender to the meeting (idempotently), notifies every
// other connected member and returns the list of other participants.
// Membership mutation and its fan-out are one logical step: a failed
// mutation performs no fan-out.
func (r *Router) Join(ctx context.Context, sig core.JoinSignal) ([]domain.ParticipantID, error) {
	active, err := r.dir.IsActive(ctx, sig.Meeting)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDirectoryUnavailable, err)
	}
	if !active {
		return nil, core.ErrMeetingNotFound
	}

	if _, err := r.dir.Join(ctx, sig.Meeting, sig.From); err != nil {
		// the meeting can empty out and cascade-delete between the
		// activity check and the join; that is still a 404, not a 500
		if errors.Is(err, core.ErrMeetingNotFound) {
			return nil, core.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("%w: %v", core.ErrDirectoryUnavailable, err)
	}
	participants, err := r.dir.ListParticipants(ctx, sig.Meeting)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDirectoryUnavailable, err)
	}

	r.reg.SetMeeting(sig.From, sig.Meeting)

	others := make([]domain.ParticipantID, 0, len(participants))
	for _, pid := range participants {
		if pid != sig.From {
			others = append(others, pid)
		}
	}

	log.Info().Str("module", "app.router").Str("pid", string(sig.From)).
		Str("meeting", string(sig.Meeting)).Int("peers", len(others)).Msg("join")

	r.notify.Broadcast(participants, sig.From, core.PresenceEvent{
		Type:      core.EventUserJoined,
		UserID:    string(sig.From),
		MeetingID: sig.Meeting,
	})
	return others, nil
}

// Leave removes the membership (deleting the meeting if it empties) and
// notifies the remaining members.
func (r *Router) Leave(ctx context.Context, sig core.LeaveSignal) error {
	if err := r.dir.Leave(ctx, sig.Meeting, sig.From); err != nil {
		return fmt.Errorf("%w: %v", core.ErrDirectoryUnavailable, err)
	}
	remaining, err := r.dir.ListParticipants(ctx, sig.Meeting)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDirectoryUnavailable, err)
	}

	r.reg.ClearMeeting(sig.From)

	log.Info().Str("module", "app.router").Str("pid", string(sig.From)).
		Str("meeting", string(sig.Meeting)).Msg("leave")

	r.notify.Broadcast(remaining, sig.From, core.PresenceEvent{
		Type:      core.EventUserLeft,
		UserID:    string(sig.From),
		MeetingID: sig.Meeting,
	})
	return nil
}

// Forward relays an offer, answer or candidate verbatim to its single
// recipient. No state is mutated; a recipient without a live channel is
// a silent drop, not an error.
func (r *Router) Forward(_ context.Context, sig core.ForwardSignal) {
	r.reg.Send(sig.To, core.NewSessionEvent(sig.Tag, sig.From, sig.Payload))
}

// Toggle delivers a capability flag to one recipient, or fans it out to
// the sender's whole meeting when no recipient is given.
func (r *Router) Toggle(ctx context.Context, sig core.ToggleSignal) error {
	ev := core.ToggleEvent{Type: string(sig.Tag), From: string(sig.From), Enabled: sig.Enabled}
	if sig.To != "" {
		r.reg.Send(sig.To, ev)
		return nil
	}
	participants, err := r.dir.ListParticipants(ctx, sig.Meeting)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDirectoryUnavailable, err)
	}
	r.notify.Broadcast(participants, sig.From, ev)
	return nil
}

// Disconnect is called by a push endpoint when its channel dies. Losing
// the channel is not a leave: the participant gets a grace period to
// reconnect, after which a leave is synthesized for the meeting recorded
// at registration time.
func (r *Router) Disconnect(pid domain.ParticipantID, conn core.PushConn) {
	meeting, had := r.reg.Unregister(pid, conn)
	if !had {
		return
	}
	time.AfterFunc(r.grace, func() {
		if _, ok := r.reg.Lookup(pid); ok {
			return // reconnected in time
		}
		log.Info().Str("module", "app.router").Str("pid", string(pid)).
			Str("meeting", string(meeting)).Msg("grace expired, synthesizing leave")
		if err := r.Leave(context.Background(), core.LeaveSignal{From: pid, Meeting: meeting}); err != nil {
			log.Error().Err(err).Str("module", "app.router").Str("pid", string(pid)).Msg("synthesized leave")
		}
	})
}
