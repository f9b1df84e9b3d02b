package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vitalis-health/platform/pkg/common/models"
)

func TestDefaultCatalogLookup(t *testing.T) {
	cat := Default()

	def, err := cat.Lookup("heart_rate_resting")
	if err != nil {
		t.Fatalf("expected heart_rate_resting in default catalog: %v", err)
	}
	if def.Kind != models.ValueNumeric {
		t.Errorf("heart_rate_resting kind = %s, want numeric", def.Kind)
	}
	if def.DefaultUnit != "bpm" {
		t.Errorf("heart_rate_resting default unit = %s, want bpm", def.DefaultUnit)
	}

	_, err = cat.Lookup("no_such_signal")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown signal lookup error = %v, want ErrNotFound", err)
	}
}

func TestDefaultCatalogSize(t *testing.T) {
	cat := Default()
	if got := len(cat.All()); got < 15 {
		t.Errorf("default catalog has %d definitions, want at least 15", got)
	}
}

func TestNewRejectsBrokenDefinitions(t *testing.T) {
	base := SignalDefinition{
		ID:             "x",
		Kind:           models.ValueNumeric,
		AllowedSources: []models.CaptureSource{models.SourceManual},
	}

	tests := []struct {
		name string
		defs []SignalDefinition
	}{
		{
			name: "empty id",
			defs: []SignalDefinition{{AllowedSources: base.AllowedSources}},
		},
		{
			name: "duplicate id",
			defs: []SignalDefinition{base, base},
		},
		{
			name: "no allowed sources",
			defs: []SignalDefinition{{ID: "x"}},
		},
		{
			name: "unknown source",
			defs: []SignalDefinition{{ID: "x", AllowedSources: []models.CaptureSource{"telepathy"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.defs); err == nil {
				t.Error("expected construction error, got nil")
			}
		})
	}
}

func TestSourceAllowed(t *testing.T) {
	cat := Default()

	def, err := cat.Lookup("heart_rate_current")
	if err != nil {
		t.Fatal(err)
	}
	if !def.SourceAllowed(models.SourceDevice) {
		t.Error("heart_rate_current should accept device captures")
	}
	if def.SourceAllowed(models.SourceManual) {
		t.Error("heart_rate_current should reject manual captures")
	}
}

func TestFilterByContext(t *testing.T) {
	cat := Default()

	male := models.UserContext{BiologicalSex: "male", AgeYears: 40}
	female := models.UserContext{BiologicalSex: "female", AgeYears: 30}
	pregnant := models.UserContext{BiologicalSex: "female", AgeYears: 30, Pregnant: true}

	contains := func(defs []SignalDefinition, id string) bool {
		for _, d := range defs {
			if d.ID == id {
				return true
			}
		}
		return false
	}

	all := cat.All()
	if contains(FilterByContext(all, male), "menstrual_flow") {
		t.Error("menstrual_flow should be filtered out for male users")
	}
	if !contains(FilterByContext(all, female), "menstrual_flow") {
		t.Error("menstrual_flow should apply to female users")
	}
	if contains(FilterByContext(all, female), "pregnancy_symptom") {
		t.Error("pregnancy_symptom should require pregnancy")
	}
	if !contains(FilterByContext(all, pregnant), "pregnancy_symptom") {
		t.Error("pregnancy_symptom should apply to pregnant users")
	}
}

func TestTrackedMetricsAreLongitudinalNumeric(t *testing.T) {
	cat := Default()
	metrics := cat.TrackedMetrics()
	if len(metrics) == 0 {
		t.Fatal("expected tracked metrics")
	}
	for _, id := range metrics {
		def, err := cat.Lookup(id)
		if err != nil {
			t.Fatalf("tracked metric %s missing from catalog: %v", id, err)
		}
		if !def.Longitudinal || def.Kind != models.ValueNumeric {
			t.Errorf("tracked metric %s is not longitudinal numeric", id)
		}
	}
	for _, id := range metrics {
		if id == "mood" || id == "symptom_note" {
			t.Errorf("non-numeric signal %s must not be tracked", id)
		}
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	overlay := `signals:
  heart_rate_resting:
    rule:
      min_value: 30
      max_value: 220
    safety:
      extreme_above: 190
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("overlay load failed: %v", err)
	}
	def, err := cat.Lookup("heart_rate_resting")
	if err != nil {
		t.Fatal(err)
	}
	if def.Rule.MinValue == nil || *def.Rule.MinValue != 30 {
		t.Errorf("overlay min_value not applied: %v", def.Rule.MinValue)
	}
	if def.Safety == nil || def.Safety.ExtremeAbove == nil || *def.Safety.ExtremeAbove != 190 {
		t.Error("overlay safety thresholds not applied")
	}
}

func TestLoadOverlayRejectsUnknownSignal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	overlay := "signals:\n  not_a_signal:\n    rule:\n      max_value: 1\n"
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for overlay referencing unknown signal")
	}
}
