package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
)

// LatestCache keeps the most recent instance per (user, signal) in Redis so
// the hot "current value" read skips Postgres. Cache misses and Redis errors
// both fall back to the repository; the cache is never authoritative.
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLatestCache(client *redis.Client, ttl time.Duration) *LatestCache {
	return &LatestCache{client: client, ttl: ttl}
}

func latestKey(userID uuid.UUID, signalID string) string {
	return fmt.Sprintf("signals:latest:%s:%s", userID, signalID)
}

func (c *LatestCache) Get(ctx context.Context, userID uuid.UUID, signalID string) (models.SignalInstance, bool) {
	if c == nil || c.client == nil {
		return models.SignalInstance{}, false
	}
	data, err := c.client.Get(ctx, latestKey(userID, signalID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.ForComponent("signals.cache").WithError(err).Debug("cache read failed")
		}
		return models.SignalInstance{}, false
	}
	var inst models.SignalInstance
	if err := json.Unmarshal(data, &inst); err != nil {
		return models.SignalInstance{}, false
	}
	return inst, true
}

// Set stores inst as the latest value. Callers must only pass instances
// known to be the most recent observation (a server-timestamped capture or
// the result of the authoritative latest query); backfilled captures go
// through Invalidate instead. The guard against an older-than-cached write
// stays as a second line of defence, but it cannot see past an empty key.
func (c *LatestCache) Set(ctx context.Context, inst models.SignalInstance) {
	if c == nil || c.client == nil {
		return
	}
	if cached, ok := c.Get(ctx, inst.UserID, inst.SignalID); ok && cached.CapturedAt.After(inst.CapturedAt) {
		return
	}
	data, err := json.Marshal(inst)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, latestKey(inst.UserID, inst.SignalID), data, c.ttl).Err(); err != nil {
		logger.ForComponent("signals.cache").WithError(err).Debug("cache write failed")
	}
}

func (c *LatestCache) Invalidate(ctx context.Context, userID uuid.UUID, signalID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, latestKey(userID, signalID)).Err(); err != nil {
		logger.ForComponent("signals.cache").WithError(err).Debug("cache invalidate failed")
	}
}
