package calls

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory call store for tests and early development.
//
// Phones maps contact id -> phone number so LatestByPhone can resolve the
// contact join without depending on the campaigns package. Tests seed it
// alongside Calls.
type MemoryRepo struct {
	mu sync.Mutex

	Calls  []Call
	Phones map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Phones: map[string]string{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	if c.ID == "" || c.ContactID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, c)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Calls {
		if c.ID == id {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) LatestByPhone(ctx context.Context, phone string) (Call, error) {
	if phone == "" {
		return Call{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	var latest Call
	for _, c := range r.Calls {
		if r.Phones[c.ContactID] != phone {
			continue
		}
		// Later insertion wins on equal timestamps.
		if !found || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
			found = true
		}
	}
	if !found {
		return Call{}, ErrNotFound
	}
	return latest, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status CallStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Calls {
		if r.Calls[i].ID == id {
			if !CanTransition(r.Calls[i].Status, status) {
				return ErrInvalidTransition
			}
			r.Calls[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) Finalize(ctx context.Context, id string, out Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Calls {
		if r.Calls[i].ID != id {
			continue
		}
		if !CanTransition(r.Calls[i].Status, out.Status) {
			return ErrInvalidTransition
		}
		ended := out.EndedAt
		r.Calls[i].Status = out.Status
		r.Calls[i].Transcript = out.Transcript
		r.Calls[i].Analysis = out.Analysis
		r.Calls[i].DurationSeconds = out.DurationSeconds
		r.Calls[i].EndedAt = &ended
		return nil
	}
	return ErrNotFound
}

func (r *MemoryRepo) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for i := len(r.Calls) - 1; i >= 0; i-- {
		if r.Calls[i].CampaignID != campaignID {
			continue
		}
		out = append(out, r.Calls[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
