package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/calls"
	"dialer-platform/pkg/logger"

	"github.com/google/uuid"
)

// Service owns campaign creation and dashboard reads. Dialing belongs to the
// dispatch engine; this service never creates call records.
type Service struct {
	repo  Repository
	calls calls.Repository

	// Audit receives best-effort creation events; nil disables auditing.
	Audit *audit.Service

	clock func() time.Time
}

func NewService(repo Repository, callRepo calls.Repository) *Service {
	return &Service{repo: repo, calls: callRepo, clock: time.Now}
}

// ContactInput is one ingested contact. Everything beyond phone and name is
// kept in Attributes and forwarded untouched to the voice agent at dispatch.
type ContactInput struct {
	Phone      string         `json:"phone"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

type CreateRequest struct {
	Name           string         `json:"name"`
	PromptTemplate string         `json:"prompt_template"`
	Contacts       []ContactInput `json:"contacts"`
}

// Create creates a campaign in DRAFT and ingests its contacts, skipping
// entries without a phone number. At least one dialable contact is required.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Campaign, int, error) {
	if len(req.Contacts) == 0 {
		return Campaign{}, 0, fmt.Errorf("%w: no contacts provided", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	camp := Campaign{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Status:         CampaignStatusDraft,
		PromptTemplate: req.PromptTemplate,
		CreatedAt:      now,
	}
	if camp.Name == "" {
		camp.Name = "Campaign " + now.Format(time.RFC3339)
	}

	contacts := make([]Contact, 0, len(req.Contacts))
	for i, in := range req.Contacts {
		if in.Phone == "" {
			continue
		}
		contacts = append(contacts, Contact{
			ID:         uuid.NewString(),
			CampaignID: camp.ID,
			Phone:      in.Phone,
			Name:       in.Name,
			Attributes: in.Attributes,
			// preserve ingestion order under identical wall-clock times
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	if len(contacts) == 0 {
		return Campaign{}, 0, fmt.Errorf("%w: no valid phone numbers", ErrInvalidArgument)
	}

	// One atomic write: a campaign must never exist without its contacts.
	if err := s.repo.CreateCampaignWithContacts(ctx, camp, contacts); err != nil {
		return Campaign{}, 0, err
	}

	if err := s.Audit.LogCampaignCreated(ctx, camp.ID,
		fmt.Sprintf("campaign %q created with %d contacts", camp.Name, len(contacts))); err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err)
	}
	return camp, len(contacts), nil
}

// Overview is the dashboard read: the campaign, aggregate progress and the
// most recent calls.
type Overview struct {
	Campaign
	Stats       Stats        `json:"stats"`
	RecentCalls []calls.Call `json:"recent_calls"`
}

const recentCallsLimit = 20

func (s *Service) Get(ctx context.Context, id string) (Overview, error) {
	if id == "" {
		return Overview{}, ErrInvalidArgument
	}
	detail, err := s.repo.GetCampaignDetail(ctx, id)
	if err != nil {
		return Overview{}, err
	}

	out := Overview{Campaign: detail.Campaign}
	out.Stats.TotalContacts = len(detail.Contacts)

	total := 0
	for _, ct := range detail.Contacts {
		total += len(ct.Calls)
		for _, c := range ct.Calls {
			switch c.Status {
			case calls.CallStatusCompleted:
				out.Stats.Completed++
			case calls.CallStatusFailed:
				out.Stats.Failed++
			case calls.CallStatusActive, calls.CallStatusDispatched:
				out.Stats.Active++
			}
		}
	}
	// rough: contacts never touched by any call attempt
	out.Stats.Pending = out.Stats.TotalContacts - total
	if out.Stats.Pending < 0 {
		out.Stats.Pending = 0
	}

	recent, err := s.calls.ListByCampaign(ctx, id, recentCallsLimit)
	if err != nil && !errors.Is(err, calls.ErrNotFound) {
		return Overview{}, err
	}
	out.RecentCalls = recent
	return out, nil
}

func (s *Service) List(ctx context.Context) ([]Campaign, error) {
	return s.repo.ListCampaigns(ctx)
}
