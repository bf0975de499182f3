package calls

import (
	"context"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to CallStatus
		want     bool
	}{
		{CallStatusDispatched, CallStatusActive, true},
		{CallStatusDispatched, CallStatusCompleted, true},
		{CallStatusDispatched, CallStatusFailed, true},
		{CallStatusActive, CallStatusCompleted, true},
		{CallStatusActive, CallStatusFailed, true},
		{CallStatusActive, CallStatusDispatched, false},
		{CallStatusCompleted, CallStatusDispatched, false},
		{CallStatusCompleted, CallStatusActive, false},
		// re-delivery of a terminal outcome is an allowed overwrite
		{CallStatusCompleted, CallStatusCompleted, true},
		{CallStatusFailed, CallStatusCompleted, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAnyProgressed(t *testing.T) {
	if AnyProgressed([]Call{{Status: CallStatusFailed}}) {
		t.Fatalf("a contact with only failed calls must stay eligible")
	}
	if !AnyProgressed([]Call{{Status: CallStatusFailed}, {Status: CallStatusCompleted}}) {
		t.Fatalf("a completed call must mark the contact as progressed")
	}
	if !AnyProgressed([]Call{{Status: CallStatusDispatched}}) {
		t.Fatalf("a dispatched call must mark the contact as progressed")
	}
	if AnyProgressed(nil) {
		t.Fatalf("no calls means no progress")
	}
}

func TestMemoryRepo_LatestByPhone(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Phones["ct1"] = "+15550001"
	repo.Calls = []Call{
		{ID: "c1", ContactID: "ct1", Status: CallStatusFailed, CreatedAt: now},
		{ID: "c2", ContactID: "ct1", Status: CallStatusDispatched, CreatedAt: now.Add(time.Minute)},
		{ID: "c3", ContactID: "ct2", Status: CallStatusCompleted, CreatedAt: now.Add(time.Hour)},
	}

	got, err := repo.LatestByPhone(context.Background(), "+15550001")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.ID != "c2" {
		t.Fatalf("expected latest call c2, got %s", got.ID)
	}

	if _, err := repo.LatestByPhone(context.Background(), "+19999999"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepo_Finalize(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []Call{{ID: "c1", ContactID: "ct1", Status: CallStatusDispatched, CreatedAt: now}}

	out := Outcome{Status: CallStatusCompleted, Transcript: "hi", DurationSeconds: 42, EndedAt: now.Add(time.Minute)}
	if err := repo.Finalize(context.Background(), "c1", out); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c, err := repo.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Status != CallStatusCompleted || c.Transcript != "hi" || c.DurationSeconds != 42 {
		t.Fatalf("finalize not applied: %+v", c)
	}
	if c.EndedAt == nil || !c.EndedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("ended_at not set: %+v", c.EndedAt)
	}
}

func TestMemoryRepo_StatusWritesGuardTransitions(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []Call{{ID: "c1", ContactID: "ct1", Status: CallStatusCompleted, CreatedAt: now}}

	if err := repo.UpdateStatus(context.Background(), "c1", CallStatusActive); err != ErrInvalidTransition {
		t.Fatalf("terminal call regressed to ACTIVE: err = %v", err)
	}
	if err := repo.Finalize(context.Background(), "c1", Outcome{Status: CallStatusDispatched}); err != ErrInvalidTransition {
		t.Fatalf("finalize accepted a non-terminal regression: err = %v", err)
	}

	// Terminal overwrite stays legal: the agent may re-deliver outcomes.
	redelivery := Outcome{Status: CallStatusCompleted, Transcript: "again", EndedAt: now.Add(time.Minute)}
	if err := repo.Finalize(context.Background(), "c1", redelivery); err != nil {
		t.Fatalf("terminal re-delivery rejected: %v", err)
	}
}
