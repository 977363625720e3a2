// Package directory provides Meeting Directory backends: a process-local
// map for tests and single-node deployments, and a Badger-backed store
// that survives restarts.
package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
	"github.com/mvolkov/huddle/internal/domain"
)

// Memory is an in-memory core.Directory.
type Memory struct {
	mu       sync.RWMutex
	meetings map[domain.MeetingID]domain.Meeting
	members  map[domain.MeetingID]map[domain.ParticipantID]domain.Membership
}

func NewMemory() *Memory {
	return &Memory{
		meetings: make(map[domain.MeetingID]domain.Meeting),
		members:  make(map[domain.MeetingID]map[domain.ParticipantID]domain.Membership),
	}
}

func (m *Memory) CreateMeeting(ctx context.Context, host domain.ParticipantID) (domain.MeetingID, error) {
	m.mu.Lock()
	id := domain.NewMeetingCode()
	for {
		if _, taken := m.meetings[id]; !taken {
			break
		}
		id = domain.NewMeetingCode()
	}
	m.meetings[id] = domain.Meeting{ID: id, HostID: host, CreatedAt: time.Now().UTC()}
	m.mu.Unlock()

	if _, err := m.Join(ctx, id, host); err != nil {
		return "", err
	}
	log.Info().Str("module", "directory.memory").Str("meeting", string(id)).Str("host", string(host)).Msg("meeting created")
	return id, nil
}

func (m *Memory) IsActive(_ context.Context, id domain.MeetingID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.meetings[id]
	return ok, nil
}

func (m *Memory) Join(_ context.Context, id domain.MeetingID, pid domain.ParticipantID) (domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meetings[id]; !ok {
		return domain.Membership{}, core.ErrMeetingNotFound
	}
	if existing, ok := m.members[id][pid]; ok {
		return existing, nil
	}
	if m.members[id] == nil {
		m.members[id] = make(map[domain.ParticipantID]domain.Membership)
	}
	ms := domain.Membership{MeetingID: id, ParticipantID: pid, JoinedAt: time.Now().UTC()}
	m.members[id][pid] = ms
	return ms, nil
}

func (m *Memory) Leave(_ context.Context, id domain.MeetingID, pid domain.ParticipantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meetings[id]; !ok {
		return nil
	}
	delete(m.members[id], pid)
	if len(m.members[id]) == 0 {
		delete(m.members, id)
		delete(m.meetings, id)
		log.Info().Str("module", "directory.memory").Str("meeting", string(id)).Msg("meeting emptied, deleted")
	}
	return nil
}

func (m *Memory) ListParticipants(_ context.Context, id domain.MeetingID) ([]domain.ParticipantID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ParticipantID, 0, len(m.members[id]))
	for pid := range m.members[id] {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
