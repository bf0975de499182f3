package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")

	// ErrInvalidTransition means a status write would regress the state
	// machine. Repositories enforce CanTransition on every status change.
	ErrInvalidTransition = errors.New("calls: invalid status transition")
)

// Repository is the persistence contract for call records.
//
// No Delete method is provided by design: call rows are an audit trail and
// are only ever created and finalized.
type Repository interface {
	Create(ctx context.Context, c Call) error
	Get(ctx context.Context, id string) (Call, error)

	// LatestByPhone returns the most recently created call whose contact has
	// the given phone number, regardless of status. Used as the reconciliation
	// fallback when the agent does not round-trip the call id.
	LatestByPhone(ctx context.Context, phone string) (Call, error)

	// UpdateStatus moves a call to a new status without touching outcome
	// fields. Used when a dial request fails after the write-ahead insert.
	UpdateStatus(ctx context.Context, id string, status CallStatus) error

	// Finalize applies the terminal outcome in a single write.
	Finalize(ctx context.Context, id string, out Outcome) error

	// ListByCampaign returns calls for a campaign, newest first.
	// limit <= 0 means no limit.
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]Call, error)
}
