package catalog

import (
	"errors"
	"fmt"

	"github.com/vitalis-health/platform/pkg/common/models"
)

// ErrInvalidUnit is returned when a supplied unit is not recognized for the
// signal, or a numeric signal is captured without any resolvable unit.
var ErrInvalidUnit = errors.New("invalid unit")

// ValidationError reports a value that failed the definition's rule. Reason
// distinguishes type mismatches, range violations and bad options so callers
// can render specific guidance.
type ValidationError struct {
	SignalID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("signal %s: %s", e.SignalID, e.Reason)
}

// ResolveUnit validates the supplied unit against the definition, falling
// back to the default when omitted. Numeric signals must end up with a unit.
func (d SignalDefinition) ResolveUnit(unit string) (string, error) {
	if unit == "" {
		if d.Kind == models.ValueNumeric && d.DefaultUnit == "" {
			return "", fmt.Errorf("%w: signal %s requires a unit", ErrInvalidUnit, d.ID)
		}
		return d.DefaultUnit, nil
	}
	if len(d.AllowedUnits) == 0 {
		if unit == d.DefaultUnit {
			return unit, nil
		}
		return "", fmt.Errorf("%w: %q not recognized for signal %s", ErrInvalidUnit, unit, d.ID)
	}
	for _, allowed := range d.AllowedUnits {
		if unit == allowed {
			return unit, nil
		}
	}
	return "", fmt.Errorf("%w: %q not recognized for signal %s", ErrInvalidUnit, unit, d.ID)
}

// ValidateValue checks a tagged value against the definition's kind and rule.
func (d SignalDefinition) ValidateValue(value models.SignalValue) error {
	if value.Kind != d.Kind {
		return &ValidationError{
			SignalID: d.ID,
			Reason:   fmt.Sprintf("expected %s value, got %s", d.Kind, value.Kind),
		}
	}

	switch d.Kind {
	case models.ValueNumeric:
		if value.Numeric == nil {
			return &ValidationError{SignalID: d.ID, Reason: "numeric payload missing"}
		}
		v := *value.Numeric
		if d.Rule.MinValue != nil && v < *d.Rule.MinValue {
			return &ValidationError{
				SignalID: d.ID,
				Reason:   fmt.Sprintf("value %.2f below minimum %.2f", v, *d.Rule.MinValue),
			}
		}
		if d.Rule.MaxValue != nil && v > *d.Rule.MaxValue {
			return &ValidationError{
				SignalID: d.ID,
				Reason:   fmt.Sprintf("value %.2f above maximum %.2f", v, *d.Rule.MaxValue),
			}
		}
	case models.ValueCategorical:
		if value.Option == nil {
			return &ValidationError{SignalID: d.ID, Reason: "option payload missing"}
		}
		for _, opt := range d.Rule.Options {
			if opt == *value.Option {
				return nil
			}
		}
		return &ValidationError{
			SignalID: d.ID,
			Reason:   fmt.Sprintf("option %q not in allowed set", *value.Option),
		}
	case models.ValueBoolean:
		if value.Bool == nil {
			return &ValidationError{SignalID: d.ID, Reason: "boolean payload missing"}
		}
	case models.ValueText:
		if value.Text == nil || *value.Text == "" {
			return &ValidationError{SignalID: d.ID, Reason: "text payload missing"}
		}
		if d.Rule.MaxTextLen > 0 && len(*value.Text) > d.Rule.MaxTextLen {
			return &ValidationError{
				SignalID: d.ID,
				Reason:   fmt.Sprintf("text exceeds %d characters", d.Rule.MaxTextLen),
			}
		}
	case models.ValueSeverity:
		if value.Severity == nil {
			return &ValidationError{SignalID: d.ID, Reason: "severity payload missing"}
		}
		maxSeverity := d.Rule.MaxSeverity
		if maxSeverity == 0 {
			maxSeverity = 10
		}
		if *value.Severity < 0 || *value.Severity > maxSeverity {
			return &ValidationError{
				SignalID: d.ID,
				Reason:   fmt.Sprintf("severity %d outside [0,%d]", *value.Severity, maxSeverity),
			}
		}
	default:
		return &ValidationError{SignalID: d.ID, Reason: fmt.Sprintf("unsupported value kind %s", d.Kind)}
	}
	return nil
}
