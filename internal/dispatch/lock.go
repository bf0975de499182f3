package dispatch

import (
	"context"
	"time"

	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes dispatch runs per campaign across processes with a
// short-lived advisory lock. The TTL caps how long a crashed run can block a
// campaign.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, campaignID string) (func(), bool, error) {
	key := "dispatch:lock:" + campaignID
	token := uuid.NewString()

	ok, err := utils.AcquireAdvisoryLock(ctx, l.rdb, key, token, l.ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		// Release must work even when the batch context was canceled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseAdvisoryLock(rctx, l.rdb, key, token); err != nil {
			logger.From(ctx).Warn("dispatch lock release failed", "campaign_id", campaignID, "err", err)
		}
	}
	return release, true, nil
}
