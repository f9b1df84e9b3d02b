package anomaly

import (
	"math"

	"github.com/vitalis-health/platform/pkg/common/models"
)

// Detection is the classifier's verdict for one metric before persistence.
type Detection struct {
	MetricName    string
	BaselineValue float64
	CurrentValue  float64
	Direction     models.ChangeDirection
	ChangePercent float64
	Severity      models.AnomalySeverity
}

// Evaluate runs the deviation check and the range check for one metric and
// returns at most one detection. Both checks are evaluated; when both fire,
// the range result wins since an absolute bound violation is the stronger
// signal. Returns nil when the metric looks normal.
func Evaluate(metric string, th MetricThresholds, recentAvg, baselineAvg float64) *Detection {
	deviation := evaluateDeviation(metric, th, recentAvg, baselineAvg)
	rangeHit := evaluateRange(metric, th, recentAvg, baselineAvg)

	if rangeHit != nil {
		return rangeHit
	}
	return deviation
}

func evaluateDeviation(metric string, th MetricThresholds, recentAvg, baselineAvg float64) *Detection {
	if baselineAvg == 0 {
		return nil
	}

	change := (recentAvg - baselineAvg) / math.Abs(baselineAvg)
	if math.Abs(change) <= th.ChangePercent {
		return nil
	}

	direction := models.DirectionIncrease
	if change < 0 {
		direction = models.DirectionDecrease
	}

	severity := models.SeverityInfo
	switch {
	case math.Abs(change) > th.UrgentPercent:
		severity = models.SeverityUrgent
	case math.Abs(change) > th.ChangePercent*1.5:
		severity = models.SeverityWarning
	}

	return &Detection{
		MetricName:    metric,
		BaselineValue: baselineAvg,
		CurrentValue:  recentAvg,
		Direction:     direction,
		ChangePercent: math.Abs(change) * 100,
		Severity:      severity,
	}
}

func evaluateRange(metric string, th MetricThresholds, recentAvg, baselineAvg float64) *Detection {
	var direction models.ChangeDirection
	var bound float64

	switch {
	case th.MaxNormal != nil && recentAvg > *th.MaxNormal:
		direction = models.DirectionTooHigh
		bound = *th.MaxNormal
	case th.MinNormal != nil && recentAvg < *th.MinNormal:
		direction = models.DirectionTooLow
		bound = *th.MinNormal
	default:
		return nil
	}

	severity := models.SeverityWarning
	margin := math.Abs(bound) * rangeMarginPercent
	if direction == models.DirectionTooHigh && recentAvg > bound+margin {
		severity = models.SeverityCritical
	}
	if direction == models.DirectionTooLow && recentAvg < bound-margin {
		severity = models.SeverityCritical
	}

	changePercent := 0.0
	if baselineAvg != 0 {
		changePercent = math.Abs(recentAvg-baselineAvg) / math.Abs(baselineAvg) * 100
	}

	return &Detection{
		MetricName:    metric,
		BaselineValue: baselineAvg,
		CurrentValue:  recentAvg,
		Direction:     direction,
		ChangePercent: changePercent,
		Severity:      severity,
	}
}
