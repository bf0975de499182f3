package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaigns"
	"dialer-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrInvalidEvent covers malformed payloads: no correlation key at all,
	// or an unknown status value.
	ErrInvalidEvent = errors.New("reconcile: invalid event")

	// ErrUnresolved means the event named a call id that does not exist and
	// carried no phone to fall back on or synthesize from.
	ErrUnresolved = errors.New("reconcile: no call record could be resolved")
)

// CallStore is the call persistence the engine needs.
type CallStore interface {
	Get(ctx context.Context, id string) (calls.Call, error)
	LatestByPhone(ctx context.Context, phone string) (calls.Call, error)
	Create(ctx context.Context, c calls.Call) error
	Finalize(ctx context.Context, id string, out calls.Outcome) error
}

// ContactStore supports synthesizing records for calls this system never
// dispatched.
type ContactStore interface {
	FindContactByPhone(ctx context.Context, phone string) (campaigns.Contact, error)
	CreateContact(ctx context.Context, c campaigns.Contact) error
}

// Engine matches asynchronous outcome events to call records and applies
// the terminal update. It tolerates re-delivery: finalizing an already
// terminal call overwrites it last-write-wins.
type Engine struct {
	calls    CallStore
	contacts ContactStore

	// Audit receives best-effort reconciliation events; nil disables auditing.
	Audit *audit.Service

	clock func() time.Time
}

func NewEngine(callStore CallStore, contactStore ContactStore) *Engine {
	return &Engine{calls: callStore, contacts: contactStore, clock: time.Now}
}

// Event is the agent's outcome payload. The agent does not always round-trip
// the call id, so phone doubles as a best-effort correlation key.
type Event struct {
	CallID     string           `json:"call_id"`
	Phone      string           `json:"phone"`
	Transcript string           `json:"transcript"`
	Status     calls.CallStatus `json:"status"`
	// DurationSeconds is the call duration in seconds.
	DurationSeconds int            `json:"duration"`
	Analysis        map[string]any `json:"analysis"`
}

type MatchKind string

const (
	MatchCallID      MatchKind = "call_id"
	MatchPhone       MatchKind = "phone"
	MatchSynthesized MatchKind = "synthesized"
)

// Resolution reports which record the event landed on and how it was found.
type Resolution struct {
	CallID         string    `json:"call_id"`
	Match          MatchKind `json:"match"`
	ContactCreated bool      `json:"contact_created,omitempty"`
}

// ReconcileOutcome resolves the event to a call record (by call id first,
// then by the latest call for the phone, else by synthesizing an inbound
// record) and applies the terminal update in one write.
//
// The phone fallback is time-ordered and not idempotency-keyed: duplicate
// events without a call id can land on a newer call for the same phone. This
// is an accepted limitation, not something the engine tries to guess around.
func (e *Engine) ReconcileOutcome(ctx context.Context, ev Event) (Resolution, error) {
	if ev.CallID == "" && ev.Phone == "" {
		return Resolution{}, fmt.Errorf("%w: call_id or phone required", ErrInvalidEvent)
	}

	status := ev.Status
	if status == "" {
		status = calls.CallStatusCompleted
	}
	// Only terminal outcomes travel on this channel; liveness transitions do
	// not carry transcripts.
	if !status.Terminal() {
		return Resolution{}, fmt.Errorf("%w: status %q is not a terminal outcome", ErrInvalidEvent, ev.Status)
	}

	res, err := e.resolve(ctx, ev)
	if err != nil {
		return Resolution{}, err
	}

	now := e.clock().UTC()
	analysis := ev.Analysis
	if analysis == nil {
		analysis = map[string]any{}
	}
	if err := e.calls.Finalize(ctx, res.CallID, calls.Outcome{
		Status:          status,
		Transcript:      ev.Transcript,
		Analysis:        analysis,
		DurationSeconds: ev.DurationSeconds,
		EndedAt:         now,
	}); err != nil {
		return Resolution{}, err
	}

	if err := e.Audit.LogReconciled(ctx, res.CallID, ev.Phone,
		fmt.Sprintf("resolved via %s, status %s", res.Match, status)); err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err)
	}
	return res, nil
}

// resolve walks the lookup chain in strict order; first match wins.
func (e *Engine) resolve(ctx context.Context, ev Event) (Resolution, error) {
	if ev.CallID != "" {
		c, err := e.calls.Get(ctx, ev.CallID)
		switch {
		case err == nil:
			return Resolution{CallID: c.ID, Match: MatchCallID}, nil
		case !errors.Is(err, calls.ErrNotFound):
			return Resolution{}, err
		}
	}

	if ev.Phone != "" {
		c, err := e.calls.LatestByPhone(ctx, ev.Phone)
		switch {
		case err == nil:
			return Resolution{CallID: c.ID, Match: MatchPhone}, nil
		case !errors.Is(err, calls.ErrNotFound):
			return Resolution{}, err
		}
		return e.synthesize(ctx, ev.Phone)
	}

	return Resolution{}, fmt.Errorf("%w: call %s unknown", ErrUnresolved, ev.CallID)
}

// synthesize anchors the event on a fresh inbound record so every outcome is
// persisted, even for calls this system never placed.
func (e *Engine) synthesize(ctx context.Context, phone string) (Resolution, error) {
	now := e.clock().UTC()
	created := false

	contact, err := e.contacts.FindContactByPhone(ctx, phone)
	if errors.Is(err, campaigns.ErrNotFound) {
		contact = campaigns.Contact{
			ID:        uuid.NewString(),
			Phone:     phone,
			Name:      "Unknown",
			CreatedAt: now,
		}
		if err = e.contacts.CreateContact(ctx, contact); err != nil {
			return Resolution{}, err
		}
		created = true
	} else if err != nil {
		return Resolution{}, err
	}

	call := calls.Call{
		ID:        uuid.NewString(),
		ContactID: contact.ID,
		Direction: calls.DirectionInbound,
		Status:    calls.CallStatusCompleted,
		CreatedAt: now,
	}
	if err := e.calls.Create(ctx, call); err != nil {
		return Resolution{}, err
	}
	return Resolution{CallID: call.ID, Match: MatchSynthesized, ContactCreated: created}, nil
}
