package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
	"github.com/mvolkov/huddle/internal/domain"
)

// Badger is a core.Directory persisted in a local Badger store, so
// meetings survive relay restarts. Meetings live under meeting/<id>,
// memberships under member/<id>/<pid>.
type Badger struct {
	db *badger.DB
}

func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	log.Info().Str("module", "directory.badger").Str("path", path).Msg("directory opened")
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error { return b.db.Close() }

func meetingKey(id domain.MeetingID) []byte {
	return []byte("meeting/" + id)
}

func memberPrefix(id domain.MeetingID) []byte {
	return []byte("member/" + id + "/")
}

func memberKey(id domain.MeetingID, pid domain.ParticipantID) []byte {
	return append(memberPrefix(id), pid...)
}

func (b *Badger) CreateMeeting(_ context.Context, host domain.ParticipantID) (domain.MeetingID, error) {
	var id domain.MeetingID
	err := b.db.Update(func(txn *badger.Txn) error {
		for {
			id = domain.NewMeetingCode()
			_, err := txn.Get(meetingKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				break
			}
			if err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		meeting, err := json.Marshal(domain.Meeting{ID: id, HostID: host, CreatedAt: now})
		if err != nil {
			return err
		}
		if err := txn.Set(meetingKey(id), meeting); err != nil {
			return err
		}
		membership, err := json.Marshal(domain.Membership{MeetingID: id, ParticipantID: host, JoinedAt: now})
		if err != nil {
			return err
		}
		return txn.Set(memberKey(id, host), membership)
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("module", "directory.badger").Str("meeting", string(id)).Str("host", string(host)).Msg("meeting created")
	return id, nil
}

func (b *Badger) IsActive(_ context.Context, id domain.MeetingID) (bool, error) {
	var active bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(meetingKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		active = true
		return nil
	})
	return active, err
}

func (b *Badger) Join(_ context.Context, id domain.MeetingID, pid domain.ParticipantID) (domain.Membership, error) {
	var ms domain.Membership
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(meetingKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return core.ErrMeetingNotFound
			}
			return err
		}
		item, err := txn.Get(memberKey(id, pid))
		if err == nil {
			// already a member: return the existing record untouched
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ms)
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		ms = domain.Membership{MeetingID: id, ParticipantID: pid, JoinedAt: time.Now().UTC()}
		val, err := json.Marshal(ms)
		if err != nil {
			return err
		}
		return txn.Set(memberKey(id, pid), val)
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return ms, nil
}

func (b *Badger) Leave(_ context.Context, id domain.MeetingID, pid domain.ParticipantID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(meetingKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if err := txn.Delete(memberKey(id, pid)); err != nil {
			return err
		}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := memberPrefix(id)
		it.Seek(prefix)
		if it.ValidForPrefix(prefix) {
			return nil
		}
		log.Info().Str("module", "directory.badger").Str("meeting", string(id)).Msg("meeting emptied, deleted")
		return txn.Delete(meetingKey(id))
	})
}

func (b *Badger) ListParticipants(_ context.Context, id domain.MeetingID) ([]domain.ParticipantID, error) {
	out := make([]domain.ParticipantID, 0, 4)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := memberPrefix(id)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			out = append(out, domain.ParticipantID(bytes.TrimPrefix(key, prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
