package catalog

import (
	"math"
	"testing"

	"github.com/vitalis-health/platform/pkg/common/models"
)

func TestEvaluateSafetyBands(t *testing.T) {
	def := mustLookup(t, "heart_rate_resting")

	tests := []struct {
		value    float64
		expected models.SafetyAlertLevel
	}{
		{62, models.SafetyNormal},
		{44, models.SafetyCaution},
		{120, models.SafetyCaution},
		{34, models.SafetyExtreme},
		{180, models.SafetyExtreme},
		{179, models.SafetyCaution},
	}

	for _, tt := range tests {
		got := def.EvaluateSafety(models.NumericValue(tt.value))
		if got != tt.expected {
			t.Errorf("EvaluateSafety(%.0f) = %s, want %s", tt.value, got, tt.expected)
		}
	}
}

func TestEvaluateSafetySystolicExtreme(t *testing.T) {
	def := mustLookup(t, "blood_pressure_systolic")
	if got := def.EvaluateSafety(models.NumericValue(200)); got != models.SafetyExtreme {
		t.Errorf("systolic 200 = %s, want extreme", got)
	}
	if got := def.EvaluateSafety(models.NumericValue(118)); got != models.SafetyNormal {
		t.Errorf("systolic 118 = %s, want normal", got)
	}
}

func TestEvaluateSafetyNoThresholds(t *testing.T) {
	def := mustLookup(t, "body_weight")
	if got := def.EvaluateSafety(models.NumericValue(340)); got != models.SafetyNormal {
		t.Errorf("signal without thresholds = %s, want normal", got)
	}
}

func TestEvaluateSafetyNonNumeric(t *testing.T) {
	def := mustLookup(t, "mood")
	if got := def.EvaluateSafety(models.OptionValue("terrible")); got != models.SafetyNormal {
		t.Errorf("non-numeric value = %s, want normal", got)
	}
}

func TestReliabilityOrdering(t *testing.T) {
	device := Reliability(models.SourceDevice)
	checkIn := Reliability(models.SourceCheckIn)
	onboarding := Reliability(models.SourceOnboarding)
	manual := Reliability(models.SourceManual)

	if !(device > checkIn && checkIn > onboarding && onboarding > manual) {
		t.Errorf("reliability ordering broken: device=%.2f checkIn=%.2f onboarding=%.2f manual=%.2f",
			device, checkIn, onboarding, manual)
	}
}

func TestConfirmedConfidence(t *testing.T) {
	tests := []struct {
		aiConfidence float64
		want         float64
	}{
		{0.50, 0.65},
		{0.60, 0.75},
		{0.70, 0.85},
		{0.80, 0.85},
		{0.95, 0.85},
	}
	for _, tt := range tests {
		if got := ConfirmedConfidence(tt.aiConfidence); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ConfirmedConfidence(%.2f) = %.2f, want %.2f", tt.aiConfidence, got, tt.want)
		}
	}
}
