package anomaly

// MetricThresholds configures detection for one tracked metric. Percent
// fields are fractions (0.15 = 15%). Absolute range bounds are optional:
// metrics like steps or weight have no population-wide normal range.
type MetricThresholds struct {
	ChangePercent float64
	UrgentPercent float64
	MinNormal     *float64
	MaxNormal     *float64
}

// rangeMarginPercent extends the absolute bounds when grading severity:
// falling outside the bound by more than this margin is critical.
const rangeMarginPercent = 0.20

func f(v float64) *float64 { return &v }

// defaultThresholds covers every tracked metric the detector evaluates.
// Metrics absent from this table are skipped by detection runs.
var defaultThresholds = map[string]MetricThresholds{
	"heart_rate_resting":       {ChangePercent: 0.15, UrgentPercent: 0.30, MinNormal: f(50), MaxNormal: f(100)},
	"heart_rate_current":       {ChangePercent: 0.25, UrgentPercent: 0.50, MinNormal: f(40), MaxNormal: f(180)},
	"blood_pressure_systolic":  {ChangePercent: 0.10, UrgentPercent: 0.20, MinNormal: f(90), MaxNormal: f(140)},
	"blood_pressure_diastolic": {ChangePercent: 0.10, UrgentPercent: 0.20, MinNormal: f(60), MaxNormal: f(90)},
	"blood_glucose":            {ChangePercent: 0.15, UrgentPercent: 0.30, MinNormal: f(70), MaxNormal: f(140)},
	"body_temperature":         {ChangePercent: 0.03, UrgentPercent: 0.05, MinNormal: f(36.0), MaxNormal: f(37.8)},
	"blood_oxygen":             {ChangePercent: 0.04, UrgentPercent: 0.08, MinNormal: f(94), MaxNormal: f(100)},
	"body_weight":              {ChangePercent: 0.05, UrgentPercent: 0.10},
	"steps":                    {ChangePercent: 0.40, UrgentPercent: 0.70},
	"sleep_duration":           {ChangePercent: 0.25, UrgentPercent: 0.50, MinNormal: f(4), MaxNormal: f(11)},
	"water_intake":             {ChangePercent: 0.40, UrgentPercent: 0.70},
	"exercise_minutes":         {ChangePercent: 0.50, UrgentPercent: 0.80},
}

// DefaultThresholds returns the built-in per-metric threshold table.
func DefaultThresholds() map[string]MetricThresholds {
	table := make(map[string]MetricThresholds, len(defaultThresholds))
	for metric, th := range defaultThresholds {
		table[metric] = th
	}
	return table
}
