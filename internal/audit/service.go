package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records operational events. Callers should treat appends as
// best-effort and only log failures.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogCampaignCreated records a new campaign and its contact count.
func (s *Service) LogCampaignCreated(ctx context.Context, campaignID, message string) error {
	return s.Append(ctx, Event{Type: EventTypeCampaignCreated, CampaignID: campaignID, Message: message})
}

// LogDispatchBatch records the outcome of one dispatch invocation.
func (s *Service) LogDispatchBatch(ctx context.Context, campaignID, message string) error {
	return s.Append(ctx, Event{Type: EventTypeDispatchBatch, CampaignID: campaignID, Message: message})
}

// LogReconciled records the terminal resolution of a call.
func (s *Service) LogReconciled(ctx context.Context, callID, phone, message string) error {
	return s.Append(ctx, Event{Type: EventTypeCallReconciled, CallID: callID, Phone: phone, Message: message})
}
