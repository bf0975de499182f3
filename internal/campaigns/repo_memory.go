package campaigns

import (
	"context"
	"sync"

	"dialer-platform/internal/calls"
)

// MemoryRepo is an in-memory campaign/contact store for tests and early
// development. CallsByContact lets tests seed call histories without a
// second repository; production reads join against the calls table instead.
type MemoryRepo struct {
	mu sync.Mutex

	Campaigns []Campaign
	Contacts  []Contact

	CallsByContact map[string][]calls.Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{CallsByContact: map[string][]calls.Call{}}
}

func (r *MemoryRepo) CreateCampaign(ctx context.Context, c Campaign) error {
	if c.ID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Campaigns = append(r.Campaigns, c)
	return nil
}

func (r *MemoryRepo) CreateCampaignWithContacts(ctx context.Context, c Campaign, contacts []Contact) error {
	if c.ID == "" {
		return ErrInvalidArgument
	}
	for _, ct := range contacts {
		if ct.ID == "" || ct.Phone == "" {
			return ErrInvalidArgument
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Campaigns = append(r.Campaigns, c)
	r.Contacts = append(r.Contacts, contacts...)
	return nil
}

func (r *MemoryRepo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return Campaign{}, ErrNotFound
}

func (r *MemoryRepo) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, len(r.Campaigns))
	copy(out, r.Campaigns)
	return out, nil
}

func (r *MemoryRepo) GetCampaignDetail(ctx context.Context, id string) (Detail, error) {
	camp, err := r.GetCampaign(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d := Detail{Campaign: camp}
	for _, ct := range r.Contacts {
		if ct.CampaignID != id {
			continue
		}
		d.Contacts = append(d.Contacts, ContactWithCalls{
			Contact: ct,
			Calls:   r.CallsByContact[ct.ID],
		})
	}
	return d, nil
}

func (r *MemoryRepo) CreateContacts(ctx context.Context, contacts []Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ct := range contacts {
		if ct.ID == "" || ct.Phone == "" {
			return ErrInvalidArgument
		}
	}
	r.Contacts = append(r.Contacts, contacts...)
	return nil
}

func (r *MemoryRepo) FindContactByPhone(ctx context.Context, phone string) (Contact, error) {
	if phone == "" {
		return Contact{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ct := range r.Contacts {
		if ct.Phone == phone {
			return ct, nil
		}
	}
	return Contact{}, ErrNotFound
}

func (r *MemoryRepo) CreateContact(ctx context.Context, c Contact) error {
	return r.CreateContacts(ctx, []Contact{c})
}
