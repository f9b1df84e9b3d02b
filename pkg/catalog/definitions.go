package catalog

import (
	"github.com/vitalis-health/platform/pkg/common/models"
)

type Category string

const (
	CategoryVitals    Category = "vitals"
	CategoryActivity  Category = "activity"
	CategorySleep     Category = "sleep"
	CategoryNutrition Category = "nutrition"
	CategoryWellbeing Category = "wellbeing"
	CategorySymptoms  Category = "symptoms"
	CategoryFemale    Category = "female_health"
)

// ValidationRule constrains captured values for one definition. Which fields
// apply depends on the definition's value kind.
type ValidationRule struct {
	MinValue    *float64 `yaml:"min_value,omitempty"`
	MaxValue    *float64 `yaml:"max_value,omitempty"`
	Options     []string `yaml:"options,omitempty"`
	MaxSeverity int      `yaml:"max_severity,omitempty"`
	MaxTextLen  int      `yaml:"max_text_len,omitempty"`
}

// SafetyThresholds define the absolute danger bands for single values,
// independent of trend-based detection. Nil bounds are not checked.
type SafetyThresholds struct {
	CautionBelow *float64 `yaml:"caution_below,omitempty"`
	CautionAbove *float64 `yaml:"caution_above,omitempty"`
	ExtremeBelow *float64 `yaml:"extreme_below,omitempty"`
	ExtremeAbove *float64 `yaml:"extreme_above,omitempty"`
}

// ContextRule restricts which users a signal applies to.
type ContextRule struct {
	RequiresSex       string `yaml:"requires_sex,omitempty"`
	MinAgeYears       *int   `yaml:"min_age_years,omitempty"`
	MaxAgeYears       *int   `yaml:"max_age_years,omitempty"`
	RequiresPregnancy bool   `yaml:"requires_pregnancy,omitempty"`
}

// SignalDefinition is one immutable catalog entry. The catalog is the single
// source of truth for what constitutes a legal observation.
type SignalDefinition struct {
	ID             string                 `yaml:"id"`
	Display        string                 `yaml:"display"`
	Category       Category               `yaml:"category"`
	Kind           models.ValueType       `yaml:"kind"`
	Rule           ValidationRule         `yaml:"rule"`
	DefaultUnit    string                 `yaml:"default_unit,omitempty"`
	AllowedUnits   []string               `yaml:"allowed_units,omitempty"`
	AllowedSources []models.CaptureSource `yaml:"allowed_sources"`
	Longitudinal   bool                   `yaml:"longitudinal"`
	RiskWeight     float64                `yaml:"risk_weight"`
	Safety         *SafetyThresholds      `yaml:"safety,omitempty"`
	Context        *ContextRule           `yaml:"context,omitempty"`
}

func f(v float64) *float64 { return &v }

var allSources = []models.CaptureSource{
	models.SourceDevice,
	models.SourceCheckIn,
	models.SourceOnboarding,
	models.SourceChatConfirmed,
	models.SourceManual,
}

var selfReported = []models.CaptureSource{
	models.SourceCheckIn,
	models.SourceOnboarding,
	models.SourceChatConfirmed,
	models.SourceManual,
}

func defaultDefinitions() []SignalDefinition {
	return []SignalDefinition{
		{
			ID:             "heart_rate_resting",
			Display:        "Resting Heart Rate",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(25), MaxValue: f(250)},
			DefaultUnit:    "bpm",
			AllowedUnits:   []string{"bpm"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.7,
			Safety: &SafetyThresholds{
				CautionBelow: f(45), CautionAbove: f(120),
				ExtremeBelow: f(35), ExtremeAbove: f(180),
			},
		},
		{
			ID:             "heart_rate_current",
			Display:        "Heart Rate",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(25), MaxValue: f(250)},
			DefaultUnit:    "bpm",
			AllowedUnits:   []string{"bpm"},
			AllowedSources: []models.CaptureSource{models.SourceDevice},
			Longitudinal:   true,
			RiskWeight:     0.5,
			Safety: &SafetyThresholds{
				ExtremeBelow: f(30), ExtremeAbove: f(210),
			},
		},
		{
			ID:             "blood_pressure_systolic",
			Display:        "Blood Pressure (Systolic)",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(60), MaxValue: f(260)},
			DefaultUnit:    "mmHg",
			AllowedUnits:   []string{"mmHg"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.9,
			Safety: &SafetyThresholds{
				CautionBelow: f(90), CautionAbove: f(140),
				ExtremeBelow: f(80), ExtremeAbove: f(180),
			},
		},
		{
			ID:             "blood_pressure_diastolic",
			Display:        "Blood Pressure (Diastolic)",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(40), MaxValue: f(160)},
			DefaultUnit:    "mmHg",
			AllowedUnits:   []string{"mmHg"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.9,
			Safety: &SafetyThresholds{
				CautionBelow: f(60), CautionAbove: f(90),
				ExtremeBelow: f(50), ExtremeAbove: f(120),
			},
		},
		{
			ID:             "blood_glucose",
			Display:        "Blood Glucose",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(20), MaxValue: f(600)},
			DefaultUnit:    "mg/dL",
			AllowedUnits:   []string{"mg/dL", "mmol/L"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.9,
			Safety: &SafetyThresholds{
				CautionBelow: f(70), CautionAbove: f(180),
				ExtremeBelow: f(54), ExtremeAbove: f(300),
			},
		},
		{
			ID:             "body_temperature",
			Display:        "Body Temperature",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(30), MaxValue: f(45)},
			DefaultUnit:    "celsius",
			AllowedUnits:   []string{"celsius", "fahrenheit"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.8,
			Safety: &SafetyThresholds{
				CautionAbove: f(38),
				ExtremeBelow: f(35), ExtremeAbove: f(39.5),
			},
		},
		{
			ID:             "blood_oxygen",
			Display:        "Blood Oxygen Saturation",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(50), MaxValue: f(100)},
			DefaultUnit:    "percent",
			AllowedUnits:   []string{"percent"},
			AllowedSources: []models.CaptureSource{models.SourceDevice, models.SourceManual},
			Longitudinal:   true,
			RiskWeight:     0.9,
			Safety: &SafetyThresholds{
				CautionBelow: f(92),
				ExtremeBelow: f(88),
			},
		},
		{
			ID:             "body_weight",
			Display:        "Body Weight",
			Category:       CategoryVitals,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(20), MaxValue: f(350)},
			DefaultUnit:    "kg",
			AllowedUnits:   []string{"kg", "lb"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.4,
		},
		{
			ID:             "steps",
			Display:        "Daily Steps",
			Category:       CategoryActivity,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(0), MaxValue: f(200000)},
			DefaultUnit:    "count",
			AllowedUnits:   []string{"count"},
			AllowedSources: []models.CaptureSource{models.SourceDevice, models.SourceManual},
			Longitudinal:   true,
			RiskWeight:     0.3,
		},
		{
			ID:             "exercise_minutes",
			Display:        "Exercise Minutes",
			Category:       CategoryActivity,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(0), MaxValue: f(1440)},
			DefaultUnit:    "min",
			AllowedUnits:   []string{"min"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.3,
		},
		{
			ID:             "sleep_duration",
			Display:        "Sleep Duration",
			Category:       CategorySleep,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(0), MaxValue: f(24)},
			DefaultUnit:    "hours",
			AllowedUnits:   []string{"hours"},
			AllowedSources: allSources,
			Longitudinal:   true,
			RiskWeight:     0.5,
		},
		{
			ID:             "sleep_quality",
			Display:        "Sleep Quality",
			Category:       CategorySleep,
			Kind:           models.ValueSeverity,
			Rule:           ValidationRule{MaxSeverity: 10},
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.4,
		},
		{
			ID:             "water_intake",
			Display:        "Water Intake",
			Category:       CategoryNutrition,
			Kind:           models.ValueNumeric,
			Rule:           ValidationRule{MinValue: f(0), MaxValue: f(10000)},
			DefaultUnit:    "ml",
			AllowedUnits:   []string{"ml", "oz"},
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.2,
		},
		{
			ID:             "energy_level",
			Display:        "Energy Level",
			Category:       CategoryWellbeing,
			Kind:           models.ValueSeverity,
			Rule:           ValidationRule{MaxSeverity: 10},
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.4,
		},
		{
			ID:             "stress_level",
			Display:        "Stress Level",
			Category:       CategoryWellbeing,
			Kind:           models.ValueSeverity,
			Rule:           ValidationRule{MaxSeverity: 10},
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.5,
		},
		{
			ID:             "mood",
			Display:        "Mood",
			Category:       CategoryWellbeing,
			Kind:           models.ValueCategorical,
			Rule:           ValidationRule{Options: []string{"great", "good", "neutral", "low", "terrible"}},
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.4,
		},
		{
			ID:             "pain_severity",
			Display:        "Pain Severity",
			Category:       CategorySymptoms,
			Kind:           models.ValueSeverity,
			Rule:           ValidationRule{MaxSeverity: 10},
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.8,
		},
		{
			ID:             "symptom_note",
			Display:        "Symptom Note",
			Category:       CategorySymptoms,
			Kind:           models.ValueText,
			Rule:           ValidationRule{MaxTextLen: 2000},
			AllowedSources: []models.CaptureSource{models.SourceChatConfirmed, models.SourceManual, models.SourceCheckIn},
			RiskWeight:     0.6,
		},
		{
			ID:             "medication_taken",
			Display:        "Medication Taken",
			Category:       CategorySymptoms,
			Kind:           models.ValueBoolean,
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.5,
		},
		{
			ID:             "menstrual_flow",
			Display:        "Menstrual Flow",
			Category:       CategoryFemale,
			Kind:           models.ValueCategorical,
			Rule:           ValidationRule{Options: []string{"none", "spotting", "light", "medium", "heavy"}},
			AllowedSources: selfReported,
			Longitudinal:   true,
			RiskWeight:     0.5,
			Context:        &ContextRule{RequiresSex: "female"},
		},
		{
			ID:             "pregnancy_symptom",
			Display:        "Pregnancy Symptom",
			Category:       CategoryFemale,
			Kind:           models.ValueText,
			Rule:           ValidationRule{MaxTextLen: 2000},
			AllowedSources: []models.CaptureSource{models.SourceChatConfirmed, models.SourceManual, models.SourceCheckIn},
			RiskWeight:     0.7,
			Context:        &ContextRule{RequiresSex: "female", RequiresPregnancy: true},
		},
	}
}
