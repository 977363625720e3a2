package app

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
	"github.com/mvolkov/huddle/internal/domain"
)

// entry binds one participant's live push channel to the meeting it last
// joined. The meeting association exists only so the disconnect reaper
// can synthesize a leave; fan-out membership always comes from the
// directory.
type entry struct {
	Conn    core.PushConn
	Meeting domain.MeetingID
	Cancel  context.CancelFunc
}

// Registry is the process-wide table of live push channels, one per
// participant. It is constructor-injected everywhere it is used so tests
// can run isolated registries side by side.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ParticipantID]*entry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ParticipantID]*entry)}
}

// Register binds a push channel to a participant, replacing any prior
// one. Browsers reconnect; the old channel is cancelled, not closed, and
// the meeting association carries over to the replacement.
func (r *Registry) Register(pid domain.ParticipantID, conn core.PushConn, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var meeting domain.MeetingID
	if old, ok := r.conns[pid]; ok {
		meeting = old.Meeting
		if old.Cancel != nil {
			old.Cancel()
		}
	}
	r.conns[pid] = &entry{Conn: conn, Meeting: meeting, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("pid", string(pid)).Msg("registered push channel")
}

// Unregister removes the entry only if it still owns conn, so a channel
// closing late cannot clobber its own replacement. It reports the
// meeting the participant was in, if any.
func (r *Registry) Unregister(pid domain.ParticipantID, conn core.PushConn) (domain.MeetingID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[pid]
	if !ok || e.Conn != conn {
		return "", false
	}
	delete(r.conns, pid)
	log.Info().Str("module", "app.registry").Str("pid", string(pid)).Msg("unregistered push channel")
	return e.Meeting, e.Meeting != ""
}

func (r *Registry) Lookup(pid domain.ParticipantID) (core.PushConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[pid]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Send encodes v and enqueues it on the participant's channel. No live
// channel means the recipient is presumed offline: the message is
// dropped, never queued, and the call still counts as fulfilled.
func (r *Registry) Send(pid domain.ParticipantID, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("encode event")
		return
	}
	conn, ok := r.Lookup(pid)
	if !ok {
		log.Debug().Str("module", "app.registry").Str("pid", string(pid)).Msg("delivery miss, no channel")
		return
	}
	if err := conn.TrySend(core.Event(data)); err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("pid", string(pid)).Msg("delivery miss")
	}
}

// SetMeeting records the meeting a participant joined, for the reaper.
func (r *Registry) SetMeeting(pid domain.ParticipantID, id domain.MeetingID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[pid]; ok {
		e.Meeting = id
	}
}

func (r *Registry) ClearMeeting(pid domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[pid]; ok {
		e.Meeting = ""
	}
}
