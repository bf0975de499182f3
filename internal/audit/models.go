package audit

import "time"

// Event is an immutable, append-only operational record.
//
// Invariants:
// - Events are never updated or deleted.
// - Appends are best-effort: a dispatch or reconciliation must never fail
//   because audit storage is down.

type Event struct {
	ID string `json:"id" db:"id"`

	Type EventType `json:"type" db:"type"`

	// Target identifiers, filled depending on the event type.
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	CallID     string `json:"call_id,omitempty" db:"call_id"`
	Phone      string `json:"phone,omitempty" db:"phone"`

	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCampaignCreated EventType = "campaign_created"
	EventTypeDispatchBatch   EventType = "dispatch_batch"
	EventTypeCallReconciled  EventType = "call_reconciled"
)
