package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaigns"
)

func newTestEngine() (*Engine, *calls.MemoryRepo, *campaigns.MemoryRepo) {
	callRepo := calls.NewMemoryRepo()
	contactRepo := campaigns.NewMemoryRepo()
	eng := NewEngine(callRepo, contactRepo)
	eng.clock = func() time.Time { return time.Unix(1700000500, 0).UTC() }
	return eng, callRepo, contactRepo
}

func TestReconcile_CallIDWinsOverPhone(t *testing.T) {
	eng, callRepo, _ := newTestEngine()
	now := time.Unix(1700000000, 0).UTC()
	callRepo.Phones["ct1"] = "+1111"
	callRepo.Calls = []calls.Call{
		{ID: "c-old", ContactID: "ct1", Status: calls.CallStatusDispatched, CreatedAt: now},
		{ID: "c-new", ContactID: "ct1", Status: calls.CallStatusDispatched, CreatedAt: now.Add(time.Hour)},
	}

	// phone alone would resolve to c-new; the explicit id must win.
	res, err := eng.ReconcileOutcome(context.Background(), Event{CallID: "c-old", Phone: "+1111", Transcript: "hello"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CallID != "c-old" || res.Match != MatchCallID {
		t.Fatalf("expected c-old via call_id, got %+v", res)
	}

	c, _ := callRepo.Get(context.Background(), "c-old")
	if c.Status != calls.CallStatusCompleted || c.Transcript != "hello" {
		t.Fatalf("terminal update not applied: %+v", c)
	}
	if c.EndedAt == nil {
		t.Fatalf("ended_at not set")
	}
	other, _ := callRepo.Get(context.Background(), "c-new")
	if other.Status != calls.CallStatusDispatched {
		t.Fatalf("sibling record must be untouched: %+v", other)
	}
}

func TestReconcile_PhoneFallbackPicksLatest(t *testing.T) {
	eng, callRepo, _ := newTestEngine()
	now := time.Unix(1700000000, 0).UTC()
	callRepo.Phones["ct1"] = "+1111"
	callRepo.Calls = []calls.Call{
		{ID: "c1", ContactID: "ct1", Status: calls.CallStatusFailed, CreatedAt: now},
		{ID: "c2", ContactID: "ct1", Status: calls.CallStatusDispatched, CreatedAt: now.Add(time.Minute)},
	}

	res, err := eng.ReconcileOutcome(context.Background(), Event{Phone: "+1111", Status: calls.CallStatusFailed, DurationSeconds: 12})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CallID != "c2" || res.Match != MatchPhone {
		t.Fatalf("expected latest call c2 via phone, got %+v", res)
	}
	c, _ := callRepo.Get(context.Background(), "c2")
	if c.Status != calls.CallStatusFailed || c.DurationSeconds != 12 {
		t.Fatalf("outcome not applied: %+v", c)
	}
}

func TestReconcile_UnknownCallIDFallsBackToPhone(t *testing.T) {
	eng, callRepo, _ := newTestEngine()
	now := time.Unix(1700000000, 0).UTC()
	callRepo.Phones["ct1"] = "+1111"
	callRepo.Calls = []calls.Call{{ID: "c1", ContactID: "ct1", Status: calls.CallStatusDispatched, CreatedAt: now}}

	res, err := eng.ReconcileOutcome(context.Background(), Event{CallID: "nope", Phone: "+1111"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CallID != "c1" || res.Match != MatchPhone {
		t.Fatalf("expected phone fallback, got %+v", res)
	}
}

func TestReconcile_SynthesizesContactAndCall(t *testing.T) {
	eng, callRepo, contactRepo := newTestEngine()

	res, err := eng.ReconcileOutcome(context.Background(), Event{Phone: "+19998887777", Transcript: "inbound chat"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Match != MatchSynthesized || !res.ContactCreated {
		t.Fatalf("expected synthesized resolution, got %+v", res)
	}

	if len(contactRepo.Contacts) != 1 {
		t.Fatalf("expected 1 synthesized contact, got %d", len(contactRepo.Contacts))
	}
	ct := contactRepo.Contacts[0]
	if ct.Phone != "+19998887777" || ct.Name != "Unknown" {
		t.Fatalf("unexpected contact: %+v", ct)
	}

	c, err := callRepo.Get(context.Background(), res.CallID)
	if err != nil {
		t.Fatalf("synthesized call not stored: %v", err)
	}
	if c.Direction != calls.DirectionInbound || c.Status != calls.CallStatusCompleted {
		t.Fatalf("expected INBOUND/COMPLETED anchor, got %+v", c)
	}
	if c.Transcript != "inbound chat" {
		t.Fatalf("terminal update missing: %+v", c)
	}
}

func TestReconcile_ExistingContactReused(t *testing.T) {
	eng, callRepo, contactRepo := newTestEngine()
	contactRepo.Contacts = []campaigns.Contact{{ID: "ct1", Phone: "+1111", Name: "Asha"}}

	res, err := eng.ReconcileOutcome(context.Background(), Event{Phone: "+1111"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Match != MatchSynthesized || res.ContactCreated {
		t.Fatalf("expected synthesis on existing contact, got %+v", res)
	}
	c, _ := callRepo.Get(context.Background(), res.CallID)
	if c.ContactID != "ct1" {
		t.Fatalf("anchor call must link the existing contact: %+v", c)
	}
	if len(contactRepo.Contacts) != 1 {
		t.Fatalf("no duplicate contact may be created")
	}
}

func TestReconcile_TerminalRedeliveryIsIdempotent(t *testing.T) {
	eng, callRepo, _ := newTestEngine()
	now := time.Unix(1700000000, 0).UTC()
	callRepo.Calls = []calls.Call{{ID: "c1", ContactID: "ct1", Status: calls.CallStatusDispatched, CreatedAt: now}}

	ev := Event{CallID: "c1", Transcript: "done", DurationSeconds: 30, Analysis: map[string]any{"sentiment": "good"}}
	if _, err := eng.ReconcileOutcome(context.Background(), ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	first, _ := callRepo.Get(context.Background(), "c1")

	if _, err := eng.ReconcileOutcome(context.Background(), ev); err != nil {
		t.Fatalf("re-delivery must succeed: %v", err)
	}
	second, _ := callRepo.Get(context.Background(), "c1")

	if second.Status != first.Status || second.Transcript != first.Transcript ||
		second.DurationSeconds != first.DurationSeconds || !second.EndedAt.Equal(*first.EndedAt) {
		t.Fatalf("re-delivery changed the record: %+v vs %+v", first, second)
	}
}

func TestReconcile_InvalidEvents(t *testing.T) {
	eng, _, _ := newTestEngine()

	if _, err := eng.ReconcileOutcome(context.Background(), Event{}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for empty event, got %v", err)
	}
	if _, err := eng.ReconcileOutcome(context.Background(), Event{Phone: "+1", Status: calls.CallStatus("RINGING")}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for non-terminal status, got %v", err)
	}
	// unknown call id with no phone: nothing to resolve or synthesize from
	if _, err := eng.ReconcileOutcome(context.Background(), Event{CallID: "ghost"}); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}
