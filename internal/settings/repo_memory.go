package settings

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory settings store for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	Values map[string]string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Values: map[string]string{}} }

func (r *MemoryRepo) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepo) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Values[key] = value
	return nil
}

func (r *MemoryRepo) All(ctx context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		out[k] = v
	}
	return out, nil
}
