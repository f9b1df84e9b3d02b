package catalog

import (
	"github.com/vitalis-health/platform/pkg/common/models"
)

// EvaluateSafety classifies a single value against the definition's absolute
// danger thresholds. Non-numeric values and definitions without thresholds
// are always normal; this is independent of trend-based anomaly detection.
func (d SignalDefinition) EvaluateSafety(value models.SignalValue) models.SafetyAlertLevel {
	if d.Safety == nil || value.Kind != models.ValueNumeric || value.Numeric == nil {
		return models.SafetyNormal
	}
	v := *value.Numeric
	t := d.Safety

	if t.ExtremeBelow != nil && v < *t.ExtremeBelow {
		return models.SafetyExtreme
	}
	if t.ExtremeAbove != nil && v >= *t.ExtremeAbove {
		return models.SafetyExtreme
	}
	if t.CautionBelow != nil && v < *t.CautionBelow {
		return models.SafetyCaution
	}
	if t.CautionAbove != nil && v >= *t.CautionAbove {
		return models.SafetyCaution
	}
	return models.SafetyNormal
}
