package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only event log for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	Events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
	return nil
}
