package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/containerd/errdefs"
)

func TestCreateSession(t *testing.T) {
	t.Parallel()

	s := NewStore()
	sess := s.CreateSession("u1", "photosynthesis")

	if sess.ID == "" || sess.Topic != "photosynthesis" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.Messages == nil || len(sess.Messages) != 0 || sess.Context != nil {
		t.Fatalf("new session must have no messages and no context: %+v", sess)
	}
	cur, ok := s.Current("u1")
	if !ok || cur.ID != sess.ID {
		t.Fatal("new session should become current")
	}
	if _, ok := s.Current("u2"); ok {
		t.Fatal("sessions must be scoped to their owner")
	}
}

func TestSwitchTo_DoesNotMutate(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := s.CreateSession("u1", "a")
	b := s.CreateSession("u1", "b")

	got, err := s.SwitchTo("u1", a.ID)
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if got.ID != a.ID || !got.LastUpdated.Equal(a.LastUpdated) {
		t.Fatalf("switch should not change data: %+v", got)
	}
	cur, _ := s.Current("u1")
	if cur.ID != a.ID {
		t.Fatalf("expected %s current, got %s", a.ID, cur.ID)
	}
	if _, err := s.SwitchTo("u2", b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other owners must not see the session, got %v", err)
	}
}

func TestRecordTurn(t *testing.T) {
	t.Parallel()

	s := NewStore()
	sess := s.CreateSession("u1", "t")
	user := s.NewMessage(domain.SenderUser, "hello")
	ai := s.NewMessage(domain.SenderAI, "Question: why?")
	c := &tutor.Context{Topic: "t", PreviousQuestions: []string{"q"}}

	got, err := s.RecordTurn("u1", sess.ID, c, user, ai)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[0].Sender != domain.SenderUser || got.Messages[1].ID != ai.ID {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.Context == nil || got.Context.Topic != "t" {
		t.Fatalf("context not stored: %+v", got.Context)
	}
	if user.ID == ai.ID {
		t.Fatal("message ids must be unique")
	}

	// The stored context is a copy.
	c.PreviousQuestions[0] = "mutated"
	again, _ := s.Get("u1", sess.ID)
	if again.Context.PreviousQuestions[0] != "q" {
		t.Fatal("store must not alias caller context")
	}

	// A nil context keeps the previous one.
	got, err = s.RecordTurn("u1", sess.ID, nil, s.NewMessage(domain.SenderUser, "more"))
	if err != nil || got.Context == nil || len(got.Messages) != 3 {
		t.Fatalf("unexpected state after nil-context record: %+v, %v", got, err)
	}
}

func TestDelete_ClearsCurrent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	sess := s.CreateSession("u1", "t")
	if err := s.Delete("u1", sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Current("u1"); ok {
		t.Fatal("deleting the current session must clear the pointer")
	}
	if _, err := s.Get("u1", sess.ID); !errdefs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Delete("u1", sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should fail, got %v", err)
	}
}

func TestDelete_KeepsOtherCurrent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := s.CreateSession("u1", "a")
	b := s.CreateSession("u1", "b")
	if err := s.Delete("u1", a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cur, ok := s.Current("u1")
	if !ok || cur.ID != b.ID {
		t.Fatal("deleting a non-current session must keep the current one")
	}
}

func TestBeginTurn_StaleResponseIsDropped(t *testing.T) {
	t.Parallel()

	s := NewStore()
	sess := s.CreateSession("u1", "t")

	ctx, done, err := s.BeginTurn(context.Background(), "u1", sess.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer done()

	if _, _, err := s.BeginTurn(context.Background(), "u1", sess.ID); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress, got %v", err)
	}

	if err := s.Delete("u1", sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("deleting the session should cancel the running turn")
	}

	if _, err := s.RecordTurn("u1", sess.ID, nil, s.NewMessage(domain.SenderAI, "late")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("late response must not be recorded, got %v", err)
	}
}

func TestBeginTurn_DoneAllowsNextTurn(t *testing.T) {
	t.Parallel()

	s := NewStore()
	sess := s.CreateSession("u1", "t")

	_, done, err := s.BeginTurn(context.Background(), "u1", sess.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	done()
	_, done, err = s.BeginTurn(context.Background(), "u1", sess.ID)
	if err != nil {
		t.Fatalf("second begin after done: %v", err)
	}
	done()
}

func TestList_MostRecentFirst(t *testing.T) {
	t.Parallel()

	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	a := s.CreateSession("u1", "a")
	b := s.CreateSession("u1", "b")
	if _, err := s.RecordTurn("u1", a.ID, nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	list := s.List("u1")
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
	if got := s.List("nobody"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %#v", got)
	}
}

func TestEvictIdle(t *testing.T) {
	t.Parallel()

	s := NewStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	old := s.CreateSession("old", "t")
	ctx, done, err := s.BeginTurn(context.Background(), "old", old.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer done()

	now = now.Add(time.Hour)
	s.CreateSession("fresh", "t")

	evicted := s.EvictIdle(now.Add(-30 * time.Minute))
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Fatalf("expected only the idle owner evicted, got %v", evicted)
	}
	if ctx.Err() == nil {
		t.Fatal("eviction should cancel pending turns")
	}
	if len(s.List("fresh")) != 1 {
		t.Fatal("active owner must be kept")
	}
}
