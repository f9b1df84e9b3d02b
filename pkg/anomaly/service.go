package anomaly

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/baseline"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
	"github.com/vitalis-health/platform/pkg/observability/metrics"
)

// DedupWindow is how long an active anomaly suppresses re-detection of the
// same (user, metric).
const DedupWindow = 24 * time.Hour

// Store is the persistence surface detection needs; *Repository satisfies it.
type Store interface {
	InsertIfNoneActive(ctx context.Context, a models.Anomaly, dedupWindow time.Duration) (bool, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]models.Anomaly, error)
	Resolve(ctx context.Context, userID, anomalyID uuid.UUID) (bool, error)
}

// Windows is the per-metric statistics surface detection reads from;
// *baseline.Engine satisfies it.
type Windows interface {
	RefreshBaseline(ctx context.Context, userID uuid.UUID, metric string, windowDays int) (models.UserBaseline, error)
	WindowAverage(ctx context.Context, userID uuid.UUID, metric string, from, to time.Time) (float64, int, error)
}

type Service struct {
	windows      Windows
	store        Store
	thresholds   map[string]MetricThresholds
	recentDays   int
	baselineDays int
	nowFunc      func() time.Time
}

// NewService builds the detection engine. recentDays and baselineDays are
// the trailing detection window and the total lookback: the baseline window
// is the slice between them, never overlapping the recent window.
func NewService(windows Windows, store Store, thresholds map[string]MetricThresholds, recentDays, baselineDays int) *Service {
	if recentDays <= 0 {
		recentDays = 7
	}
	if baselineDays <= recentDays {
		baselineDays = 30
	}
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Service{
		windows:      windows,
		store:        store,
		thresholds:   thresholds,
		recentDays:   recentDays,
		baselineDays: baselineDays,
		nowFunc:      time.Now,
	}
}

// RunDetection executes the full per-user pipeline: refresh baselines for
// every thresholded metric, classify window deviations, persist what
// survives de-duplication. One metric failing never aborts the others; the
// result carries per-metric diagnostics alongside partial results. Safe to
// re-run back to back: the dedup guard absorbs repeat detections.
func (s *Service) RunDetection(ctx context.Context, userID uuid.UUID) (models.DetectionResult, error) {
	now := s.nowFunc().UTC()
	result := models.DetectionResult{
		UserID:      userID,
		Diagnostics: map[string]string{},
		RanAt:       now,
	}

	recentFrom := now.AddDate(0, 0, -s.recentDays)
	baselineFrom := now.AddDate(0, 0, -s.baselineDays)

	for metric, th := range s.thresholds {
		if _, err := s.windows.RefreshBaseline(ctx, userID, metric, s.baselineDays); err != nil {
			if !errors.Is(err, baseline.ErrInsufficientData) {
				logger.FromContext(ctx).WithError(err).WithField("metric", metric).Warn("baseline refresh failed")
				result.Diagnostics[metric] = fmt.Sprintf("baseline refresh: %v", err)
				continue
			}
			// Too few points for a stored baseline; the detection windows
			// are checked on their own below.
		}

		recentAvg, recentCount, err := s.windows.WindowAverage(ctx, userID, metric, recentFrom, now)
		if err != nil {
			result.Diagnostics[metric] = fmt.Sprintf("recent window: %v", err)
			continue
		}
		baselineAvg, baselineCount, err := s.windows.WindowAverage(ctx, userID, metric, baselineFrom, recentFrom)
		if err != nil {
			result.Diagnostics[metric] = fmt.Sprintf("baseline window: %v", err)
			continue
		}
		if recentCount == 0 || baselineCount == 0 {
			continue
		}

		detection := Evaluate(metric, th, recentAvg, baselineAvg)
		if detection == nil {
			continue
		}

		anomaly := models.Anomaly{
			ID:              uuid.New(),
			UserID:          userID,
			MetricName:      detection.MetricName,
			BaselineValue:   detection.BaselineValue,
			CurrentValue:    detection.CurrentValue,
			ChangeDirection: detection.Direction,
			ChangePercent:   detection.ChangePercent,
			Severity:        detection.Severity,
			DetectionDays:   s.recentDays,
			BaselineDays:    s.baselineDays - s.recentDays,
			Status:          models.AnomalyActive,
			DetectedAt:      now,
		}
		result.Detected = append(result.Detected, anomaly)
		metrics.IncAnomaliesDetected()

		inserted, err := s.store.InsertIfNoneActive(ctx, anomaly, DedupWindow)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("metric", metric).Error("anomaly insert failed")
			result.Diagnostics[metric] = fmt.Sprintf("persist: %v", err)
			continue
		}
		if !inserted {
			metrics.IncAnomaliesDeduplicated()
			continue
		}
		result.Persisted = append(result.Persisted, anomaly)
	}

	metrics.IncDetectionRuns()
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id":   userID,
		"detected":  len(result.Detected),
		"persisted": len(result.Persisted),
	}).Info("anomaly detection run complete")

	return result, nil
}

// ListActive returns active anomalies ordered by severity then recency,
// scoped to the caller.
func (s *Service) ListActive(ctx context.Context, callerID, userID uuid.UUID) ([]models.Anomaly, error) {
	if callerID == uuid.Nil || callerID != userID {
		return nil, errors.New("caller does not own this user")
	}
	return s.store.ListActive(ctx, userID)
}

// ResolveAnomaly marks one active anomaly resolved.
func (s *Service) ResolveAnomaly(ctx context.Context, callerID, anomalyID uuid.UUID) (bool, error) {
	return s.store.Resolve(ctx, callerID, anomalyID)
}
