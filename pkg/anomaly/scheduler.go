package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
)

// UserSource lists users due for an interval scan; *Repository satisfies it.
type UserSource interface {
	UsersWithRecentInstances(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// Scheduler drives detection runs from two triggers: capture events from the
// signal bus and a fixed interval sweep. A short-lived Redis SETNX key
// debounces per user so an event flood does not run back-to-back scans.
type Scheduler struct {
	service     *Service
	users       UserSource
	redisClient *redis.Client
	interval    time.Duration
	debounceTTL time.Duration
}

func NewScheduler(service *Service, users UserSource, redisClient *redis.Client, interval, debounceTTL time.Duration) *Scheduler {
	return &Scheduler{
		service:     service,
		users:       users,
		redisClient: redisClient,
		interval:    interval,
		debounceTTL: debounceTTL,
	}
}

// HandleSignalEvent is the Kafka consumer callback: one capture event
// schedules one (debounced) detection run for that user.
func (s *Scheduler) HandleSignalEvent(ctx context.Context, event models.SignalEvent) error {
	if event.Type != models.EventSignalCaptured && event.Type != models.EventSignalSuperseded {
		return nil
	}
	if !s.acquireDebounce(ctx, event.UserID) {
		return nil
	}
	if _, err := s.service.RunDetection(ctx, event.UserID); err != nil {
		return err
	}
	return nil
}

// RunInterval sweeps all recently active users until the context is
// cancelled. Detection runs are re-entrant; the dedup guard makes an overlap
// with event-driven runs harmless.
func (s *Scheduler) RunInterval(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context) {
	since := time.Now().UTC().Add(-s.interval)
	userIDs, err := s.users.UsersWithRecentInstances(ctx, since)
	if err != nil {
		logger.ForComponent("anomaly.scheduler").WithError(err).Error("failed to list users for sweep")
		return
	}

	for _, userID := range userIDs {
		if !s.acquireDebounce(ctx, userID) {
			continue
		}
		if _, err := s.service.RunDetection(ctx, userID); err != nil {
			logger.ForComponent("anomaly.scheduler").WithError(err).WithField("user_id", userID).Error("detection run failed")
		}
	}
}

func (s *Scheduler) acquireDebounce(ctx context.Context, userID uuid.UUID) bool {
	if s.redisClient == nil {
		return true
	}
	key := fmt.Sprintf("anomaly:debounce:%s", userID)
	ok, err := s.redisClient.SetNX(ctx, key, 1, s.debounceTTL).Result()
	if err != nil {
		// Degrade to running the scan; the dedup guard keeps it safe.
		logger.ForComponent("anomaly.scheduler").WithError(err).Debug("debounce check failed")
		return true
	}
	return ok
}
