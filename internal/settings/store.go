package settings

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known keys. Values live in the settings table so operators can change
// them from the dashboard without a redeploy; the same-named environment
// variable is the fallback.
const (
	KeySIPTrunkID   = "SIP_TRUNK_ID"
	KeySystemPrompt = "SYSTEM_PROMPT"
)

var (
	ErrNotFound        = errors.New("settings: not found")
	ErrInvalidArgument = errors.New("settings: invalid argument")
)

// Repository is the persistence contract for setting rows.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Store resolves settings with precedence: stored value > env var > fallback.
// A Redis client, when configured, caches reads with a short TTL; cache
// failures degrade to direct repository reads.
type Store struct {
	repo     Repository
	rdb      *redis.Client
	cacheTTL time.Duration
}

func NewStore(repo Repository, rdb *redis.Client) *Store {
	return &Store{repo: repo, rdb: rdb, cacheTTL: 30 * time.Second}
}

const cachePrefix = "settings:"

func (s *Store) Get(ctx context.Context, key, fallback string) (string, error) {
	if key == "" {
		return "", ErrInvalidArgument
	}

	if s.rdb != nil {
		if v, err := s.rdb.Get(ctx, cachePrefix+key).Result(); err == nil && v != "" {
			return v, nil
		}
	}

	v, err := s.repo.Get(ctx, key)
	switch {
	case err == nil && v != "":
		s.cache(ctx, key, v)
		return v, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return "", err
	}

	// Env fallback only for the keys this system owns; Get is reachable
	// with dashboard-supplied keys and must not read arbitrary process env.
	if envFallbackAllowed(key) {
		if env := os.Getenv(key); env != "" {
			return env, nil
		}
	}
	return fallback, nil
}

func envFallbackAllowed(key string) bool {
	switch key {
	case KeySIPTrunkID, KeySystemPrompt:
		return true
	default:
		return false
	}
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidArgument
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	s.cache(ctx, key, value)
	return nil
}

// All returns every stored setting. Env fallbacks are not merged in: the
// dashboard edits stored values only.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	return s.repo.All(ctx)
}

func (s *Store) cache(ctx context.Context, key, value string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, cachePrefix+key, value, s.cacheTTL).Err(); err != nil {
		slog.Debug("settings cache write failed", "key", key, "err", err)
	}
}
