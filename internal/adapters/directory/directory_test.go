package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/mvolkov/huddle/internal/core"
	"github.com/mvolkov/huddle/internal/domain"
)

// both backends must satisfy the same contract, so the suite runs twice
func TestDirectory(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		runDirectorySuite(t, func(t *testing.T) core.Directory {
			return NewMemory()
		})
	})
	t.Run("badger", func(t *testing.T) {
		runDirectorySuite(t, func(t *testing.T) core.Directory {
			b, err := OpenBadger(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { b.Close() })
			return b
		})
	})
}

func runDirectorySuite(t *testing.T, open func(t *testing.T) core.Directory) {
	ctx := context.Background()

	t.Run("create joins the host", func(t *testing.T) {
		dir := open(t)
		id, err := dir.CreateMeeting(ctx, "host")
		if err != nil {
			t.Fatal(err)
		}
		if len(id) != 8 {
			t.Errorf("meeting code %q, want 8 chars", id)
		}
		active, err := dir.IsActive(ctx, id)
		if err != nil || !active {
			t.Fatalf("fresh meeting inactive: %v %v", active, err)
		}
		participants, err := dir.ListParticipants(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(participants) != 1 || participants[0] != "host" {
			t.Errorf("expected the host as sole member, got %v", participants)
		}
	})

	t.Run("join is idempotent", func(t *testing.T) {
		dir := open(t)
		id, _ := dir.CreateMeeting(ctx, "host")
		first, err := dir.Join(ctx, id, "guest")
		if err != nil {
			t.Fatal(err)
		}
		second, err := dir.Join(ctx, id, "guest")
		if err != nil {
			t.Fatal(err)
		}
		if !first.JoinedAt.Equal(second.JoinedAt) {
			t.Error("re-join minted a new membership record")
		}
		participants, _ := dir.ListParticipants(ctx, id)
		if len(participants) != 2 {
			t.Errorf("roster %v, want host and guest once each", participants)
		}
	})

	t.Run("join unknown meeting", func(t *testing.T) {
		dir := open(t)
		_, err := dir.Join(ctx, "ZZZZ9999", "guest")
		if !errors.Is(err, core.ErrMeetingNotFound) {
			t.Fatalf("expected ErrMeetingNotFound, got %v", err)
		}
	})

	t.Run("last leave deletes the meeting", func(t *testing.T) {
		dir := open(t)
		id, _ := dir.CreateMeeting(ctx, "host")
		if _, err := dir.Join(ctx, id, "guest"); err != nil {
			t.Fatal(err)
		}

		if err := dir.Leave(ctx, id, "guest"); err != nil {
			t.Fatal(err)
		}
		active, _ := dir.IsActive(ctx, id)
		if !active {
			t.Fatal("meeting deleted while the host is still in it")
		}

		if err := dir.Leave(ctx, id, "host"); err != nil {
			t.Fatal(err)
		}
		active, _ = dir.IsActive(ctx, id)
		if active {
			t.Error("emptied meeting still active")
		}
		participants, err := dir.ListParticipants(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(participants) != 0 {
			t.Errorf("deleted meeting still lists %v", participants)
		}
	})

	t.Run("leave of an unknown meeting is a no-op", func(t *testing.T) {
		dir := open(t)
		if err := dir.Leave(ctx, "ZZZZ9999", "ghost"); err != nil {
			t.Fatal(err)
		}
		active, err := dir.IsActive(ctx, "ZZZZ9999")
		if err != nil {
			t.Fatal(err)
		}
		if active {
			t.Error("leave conjured a meeting into existence")
		}
	})

	t.Run("leave of a non-member is a no-op", func(t *testing.T) {
		dir := open(t)
		id, _ := dir.CreateMeeting(ctx, "host")
		if err := dir.Leave(ctx, id, "stranger"); err != nil {
			t.Fatal(err)
		}
		active, _ := dir.IsActive(ctx, id)
		if !active {
			t.Error("no-op leave tore the meeting down")
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		dir := open(t)
		id, _ := dir.CreateMeeting(ctx, "mallory")
		for _, pid := range []domain.ParticipantID{"zoe", "alice", "bob"} {
			if _, err := dir.Join(ctx, id, pid); err != nil {
				t.Fatal(err)
			}
		}
		participants, _ := dir.ListParticipants(ctx, id)
		want := []domain.ParticipantID{"alice", "bob", "mallory", "zoe"}
		if len(participants) != len(want) {
			t.Fatalf("roster %v, want %v", participants, want)
		}
		for i := range want {
			if participants[i] != want[i] {
				t.Fatalf("roster %v, want %v", participants, want)
			}
		}
	})
}
