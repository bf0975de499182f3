package calls

import "time"

// Call is one tracked call attempt: outbound attempts created by the
// dispatcher, or inbound records synthesized when an outcome event arrives
// for a call this system never placed.
//
// Lifecycle invariant: a row is written exactly twice, once at creation and
// once when reconciliation applies the terminal outcome. Rows are never
// deleted.

type Call struct {
	ID         string `json:"id" db:"id"`
	ContactID  string `json:"contact_id" db:"contact_id"`
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	Direction Direction  `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`

	// Transcript and Analysis stay empty until reconciliation.
	// Analysis is an opaque payload from the voice agent; stored as JSONB.
	Transcript string         `json:"transcript,omitempty" db:"transcript"`
	Analysis   map[string]any `json:"analysis,omitempty" db:"analysis"`

	DurationSeconds int `json:"duration" db:"duration"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type Direction string

const (
	DirectionOutbound Direction = "OUTBOUND"
	DirectionInbound  Direction = "INBOUND"
)

type CallStatus string

const (
	// CallStatusDispatched means the row exists and a dial was requested.
	CallStatusDispatched CallStatus = "DISPATCHED"
	// CallStatusActive means the agent session was confirmed live.
	CallStatusActive CallStatus = "ACTIVE"

	CallStatusCompleted CallStatus = "COMPLETED"
	CallStatusFailed    CallStatus = "FAILED"
)

// Terminal reports whether s is a final state.
func (s CallStatus) Terminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// Valid reports whether s is a known status value.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusDispatched, CallStatusActive, CallStatusCompleted, CallStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal state-machine move.
// DISPATCHED may skip ACTIVE and resolve straight to a terminal state.
// Terminal -> terminal is allowed: the external agent does not guarantee
// exactly-once delivery, so reconciliation overwrites terminal records
// last-write-wins instead of rejecting duplicates.
func CanTransition(from, to CallStatus) bool {
	if from.Terminal() {
		return to.Terminal()
	}
	switch from {
	case CallStatusDispatched:
		return to == CallStatusActive || to.Terminal()
	case CallStatusActive:
		return to.Terminal()
	default:
		return false
	}
}

// Progressed reports whether this call counts as successful progress for its
// contact. A contact with any dispatched, active or completed call is
// excluded from future dispatch batches; FAILED calls leave the contact
// eligible for retry.
func (c Call) Progressed() bool {
	switch c.Status {
	case CallStatusDispatched, CallStatusActive, CallStatusCompleted:
		return true
	default:
		return false
	}
}

// AnyProgressed applies Progressed across a contact's call history.
func AnyProgressed(history []Call) bool {
	for _, c := range history {
		if c.Progressed() {
			return true
		}
	}
	return false
}

// Outcome carries the terminal update reconciliation applies in one write.
type Outcome struct {
	Status          CallStatus     `json:"status"`
	Transcript      string         `json:"transcript"`
	Analysis        map[string]any `json:"analysis"`
	DurationSeconds int            `json:"duration"`
	EndedAt         time.Time      `json:"ended_at"`
}
