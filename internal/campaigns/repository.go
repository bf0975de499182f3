package campaigns

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("campaigns: not found")
	ErrInvalidArgument = errors.New("campaigns: invalid argument")
)

// Repository is the persistence contract for campaigns and contacts.
// Contacts are immutable after ingestion; there are no update methods.
type Repository interface {
	CreateCampaign(ctx context.Context, c Campaign) error

	// CreateCampaignWithContacts writes the campaign and its contacts in one
	// atomic unit so a storage failure never leaves a contact-less campaign.
	CreateCampaignWithContacts(ctx context.Context, c Campaign, contacts []Contact) error

	GetCampaign(ctx context.Context, id string) (Campaign, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)

	// GetCampaignDetail loads the campaign, its full contact set in ingestion
	// order, and every contact's call history. This is the single read the
	// dispatch engine performs per batch.
	GetCampaignDetail(ctx context.Context, id string) (Detail, error)

	CreateContacts(ctx context.Context, contacts []Contact) error

	// FindContactByPhone returns any contact with the given phone number.
	// Used by reconciliation when synthesizing records for unknown calls.
	FindContactByPhone(ctx context.Context, phone string) (Contact, error)
	CreateContact(ctx context.Context, c Contact) error
}
