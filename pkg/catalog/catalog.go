package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vitalis-health/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a signal id resolves to no definition.
// Unknown ids are always rejected, never silently accepted.
var ErrNotFound = errors.New("signal not found in catalog")

// Catalog is the static registry of signal definitions. Read-only after
// construction, safe for concurrent use.
type Catalog struct {
	defs map[string]SignalDefinition
}

func New(defs []SignalDefinition) (*Catalog, error) {
	byID := make(map[string]SignalDefinition, len(defs))
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("catalog definition with empty id")
		}
		if _, dup := byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog definition %q", def.ID)
		}
		if len(def.AllowedSources) == 0 {
			return nil, fmt.Errorf("catalog definition %q has no allowed sources", def.ID)
		}
		for _, src := range def.AllowedSources {
			// Reliability panics on sources outside the closed set; surface
			// catalog mistakes at construction instead.
			if _, err := reliabilityOf(src); err != nil {
				return nil, fmt.Errorf("catalog definition %q: %w", def.ID, err)
			}
		}
		byID[def.ID] = def
	}
	return &Catalog{defs: byID}, nil
}

// Default returns the built-in catalog. Construction of the built-in set is
// validated at init time; a broken default table is a programming error.
func Default() *Catalog {
	cat, err := New(defaultDefinitions())
	if err != nil {
		panic(err)
	}
	return cat
}

// Load builds the default catalog and, when path is non-empty, applies a YAML
// overlay that may tune bounds and safety thresholds per signal id. Overlay
// entries for unknown ids are rejected so typos fail at startup.
func Load(path string) (*Catalog, error) {
	cat := Default()
	if path == "" {
		return cat, nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var overlay struct {
		Signals map[string]struct {
			Rule   *ValidationRule   `yaml:"rule"`
			Safety *SafetyThresholds `yaml:"safety"`
		} `yaml:"signals"`
	}
	if err := yaml.Unmarshal(content, &overlay); err != nil {
		return nil, fmt.Errorf("catalog overlay: %w", err)
	}

	for id, patch := range overlay.Signals {
		def, ok := cat.defs[id]
		if !ok {
			return nil, fmt.Errorf("catalog overlay references unknown signal %q", id)
		}
		if patch.Rule != nil {
			def.Rule = *patch.Rule
		}
		if patch.Safety != nil {
			def.Safety = patch.Safety
		}
		cat.defs[id] = def
	}
	return cat, nil
}

// Lookup resolves a signal id to its definition.
func (c *Catalog) Lookup(signalID string) (SignalDefinition, error) {
	def, ok := c.defs[signalID]
	if !ok {
		return SignalDefinition{}, fmt.Errorf("%w: %s", ErrNotFound, signalID)
	}
	return def, nil
}

// All returns every definition, ordered by id for deterministic output.
func (c *Catalog) All() []SignalDefinition {
	defs := make([]SignalDefinition, 0, len(c.defs))
	for _, def := range c.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// FilterByContext excludes definitions whose applicability rules the user
// does not satisfy.
func FilterByContext(defs []SignalDefinition, user models.UserContext) []SignalDefinition {
	filtered := make([]SignalDefinition, 0, len(defs))
	for _, def := range defs {
		if def.AppliesTo(user) {
			filtered = append(filtered, def)
		}
	}
	return filtered
}

func (d SignalDefinition) AppliesTo(user models.UserContext) bool {
	rule := d.Context
	if rule == nil {
		return true
	}
	if rule.RequiresSex != "" && user.BiologicalSex != rule.RequiresSex {
		return false
	}
	if rule.MinAgeYears != nil && user.AgeYears < *rule.MinAgeYears {
		return false
	}
	if rule.MaxAgeYears != nil && user.AgeYears > *rule.MaxAgeYears {
		return false
	}
	if rule.RequiresPregnancy && !user.Pregnant {
		return false
	}
	return true
}

// SourceAllowed reports whether the definition accepts observations from the
// given capture source.
func (d SignalDefinition) SourceAllowed(source models.CaptureSource) bool {
	for _, allowed := range d.AllowedSources {
		if allowed == source {
			return true
		}
	}
	return false
}

// TrackedMetrics returns the ids of longitudinal numeric signals, the set the
// baseline and anomaly engines operate on.
func (c *Catalog) TrackedMetrics() []string {
	var metrics []string
	for id, def := range c.defs {
		if def.Longitudinal && def.Kind == models.ValueNumeric {
			metrics = append(metrics, id)
		}
	}
	sort.Strings(metrics)
	return metrics
}
