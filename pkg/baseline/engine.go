package baseline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
)

// ErrInsufficientData marks a window with too few points to summarize. A
// "baseline" off a handful of readings would mislead anomaly detection, so
// the engine refuses rather than guessing.
var ErrInsufficientData = errors.New("insufficient data for baseline")

// DefaultMinSamples is the smallest window the engine will summarize.
const DefaultMinSamples = 5

// Store is the persistence surface the engine needs; *Repository satisfies it.
type Store interface {
	Upsert(ctx context.Context, b models.UserBaseline) error
	Get(ctx context.Context, userID uuid.UUID, metric string) (models.UserBaseline, bool, error)
	NumericPointsInRange(ctx context.Context, userID uuid.UUID, metric string, from, to time.Time) ([]Point, error)
	InstancesSince(ctx context.Context, userID uuid.UUID, signalID string, from time.Time) ([]models.TrendPoint, error)
}

type Engine struct {
	store      Store
	minSamples int
	nowFunc    func() time.Time
}

func NewEngine(store Store, minSamples int) *Engine {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Engine{
		store:      store,
		minSamples: minSamples,
		nowFunc:    time.Now,
	}
}

// ComputeBaseline summarizes the trailing window without persisting. The
// expiry equals the window length; after that the baseline must be
// recomputed before reuse.
func (e *Engine) ComputeBaseline(ctx context.Context, userID uuid.UUID, metric string, windowDays int) (models.UserBaseline, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	now := e.nowFunc().UTC()
	from := now.AddDate(0, 0, -windowDays)

	points, err := e.store.NumericPointsInRange(ctx, userID, metric, from, now)
	if err != nil {
		return models.UserBaseline{}, fmt.Errorf("baseline window read: %w", err)
	}
	if len(points) < e.minSamples {
		return models.UserBaseline{}, fmt.Errorf("%w: %d of %d points for %s", ErrInsufficientData, len(points), e.minSamples, metric)
	}

	stats := Summarize(points)
	window := time.Duration(windowDays) * 24 * time.Hour
	return models.UserBaseline{
		UserID:          userID,
		MetricName:      metric,
		BaselineValue:   stats.Mean,
		MinNormal:       stats.Min,
		MaxNormal:       stats.Max,
		StdDeviation:    stats.StdDev,
		DataPointsCount: stats.Count,
		WindowDays:      windowDays,
		CalculatedAt:    now,
		ExpiresAt:       now.Add(window),
	}, nil
}

// RefreshBaseline recomputes and persists the baseline for one metric.
func (e *Engine) RefreshBaseline(ctx context.Context, userID uuid.UUID, metric string, windowDays int) (models.UserBaseline, error) {
	b, err := e.ComputeBaseline(ctx, userID, metric, windowDays)
	if err != nil {
		return models.UserBaseline{}, err
	}
	if err := e.store.Upsert(ctx, b); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("metric", metric).Error("failed to persist baseline")
		return models.UserBaseline{}, fmt.Errorf("baseline upsert: %w", err)
	}
	return b, nil
}

// GetBaseline returns the stored baseline, recomputing a stale one first so
// expired statistics never silently feed a consumer.
func (e *Engine) GetBaseline(ctx context.Context, userID uuid.UUID, metric string, windowDays int) (models.UserBaseline, error) {
	stored, found, err := e.store.Get(ctx, userID, metric)
	if err != nil {
		return models.UserBaseline{}, fmt.Errorf("baseline read: %w", err)
	}
	if found && !stored.Expired(e.nowFunc().UTC()) {
		return stored, nil
	}
	return e.RefreshBaseline(ctx, userID, metric, windowDays)
}

// WindowAverage is the detection engine's window primitive: the mean of
// usable points between from and to, with the usable count.
func (e *Engine) WindowAverage(ctx context.Context, userID uuid.UUID, metric string, from, to time.Time) (float64, int, error) {
	points, err := e.store.NumericPointsInRange(ctx, userID, metric, from, to)
	if err != nil {
		return 0, 0, err
	}
	if len(points) == 0 {
		return 0, 0, nil
	}
	stats := Summarize(points)
	return stats.Mean, stats.Count, nil
}
