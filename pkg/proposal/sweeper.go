package proposal

import (
	"context"
	"time"

	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/observability/metrics"
)

// Sweeper expires pending proposals that were never resolved. Expiry is a
// terminal state like rejection: no instance is ever produced from it.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	nowFunc  func() time.Time
}

func NewSweeper(store Store, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		nowFunc:  time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Intended to
// be started as a goroutine from the service main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := s.nowFunc().UTC().Add(-s.ttl)
	expired, err := s.store.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		logger.ForComponent("proposal.sweeper").WithError(err).Error("proposal expiry sweep failed")
		return
	}
	if expired > 0 {
		metrics.AddProposalsExpired(expired)
		logger.ForComponent("proposal.sweeper").WithField("expired", expired).Info("expired stale proposals")
	}
}
