package campaigns

import (
	"time"

	"dialer-platform/internal/calls"
)

// Campaign is a named set of contacts targeted for outbound calling.
// Status is informational for the dashboard; the dispatcher derives real
// progress from call records, not from this field.

type Campaign struct {
	ID     string         `json:"id" db:"id"`
	Name   string         `json:"name" db:"name"`
	Status CampaignStatus `json:"status" db:"status"`

	// PromptTemplate is forwarded to the voice agent as dispatch metadata.
	PromptTemplate string `json:"prompt_template,omitempty" db:"prompt_template"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "DRAFT"
	CampaignStatusRunning CampaignStatus = "RUNNING"
	CampaignStatusDone    CampaignStatus = "DONE"
)

// Contact is one dialable phone number within a campaign. Phone doubles as
// the fallback correlation key during reconciliation, so it is required.
// Attributes is an opaque bag forwarded to the agent as call context.
type Contact struct {
	ID         string         `json:"id" db:"id"`
	CampaignID string         `json:"campaign_id,omitempty" db:"campaign_id"`
	Phone      string         `json:"phone" db:"phone"`
	Name       string         `json:"name,omitempty" db:"name"`
	Attributes map[string]any `json:"attributes,omitempty" db:"attributes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ContactWithCalls pairs a contact with its full call history, in the shape
// the dispatch eligibility check needs.
type ContactWithCalls struct {
	Contact
	Calls []calls.Call `json:"calls"`
}

// Detail is a campaign with its complete contact set and each contact's
// calls, in contact ingestion order.
type Detail struct {
	Campaign
	Contacts []ContactWithCalls `json:"contacts"`
}

// Stats summarizes call progress for a campaign.
// Pending approximates contacts with no call record at all.
type Stats struct {
	TotalContacts int `json:"total"`
	Pending       int `json:"pending"`
	Active        int `json:"active"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
}
