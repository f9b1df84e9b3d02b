package baseline

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/models"
)

// ComputeTrend returns the ordered series for a signal over the trailing
// days, with arithmetic for numeric signals, frequencies for boolean signals
// and ordered history only for everything else.
func (e *Engine) ComputeTrend(ctx context.Context, cat *catalog.Catalog, userID uuid.UUID, signalID string, days int) (models.Trend, error) {
	def, err := cat.Lookup(signalID)
	if err != nil {
		return models.Trend{}, err
	}
	if days <= 0 {
		days = 30
	}

	from := e.nowFunc().UTC().AddDate(0, 0, -days)
	points, err := e.store.InstancesSince(ctx, userID, signalID, from)
	if err != nil {
		return models.Trend{}, fmt.Errorf("trend window read: %w", err)
	}

	trend := models.Trend{
		SignalID: signalID,
		Kind:     def.Kind,
		Days:     days,
		Points:   points,
	}

	switch def.Kind {
	case models.ValueNumeric:
		fillNumericTrend(&trend)
	case models.ValueBoolean:
		fillBooleanTrend(&trend)
	}
	return trend, nil
}

func fillNumericTrend(trend *models.Trend) {
	var first, last *float64
	for i := range trend.Points {
		v := trend.Points[i].Value.Numeric
		if v == nil {
			continue
		}
		if first == nil {
			first = v
		}
		last = v
	}
	if first == nil || last == nil {
		return
	}

	firstV, lastV := *first, *last
	absolute := lastV - firstV
	trend.FirstValue = &firstV
	trend.LastValue = &lastV
	trend.AbsoluteChange = &absolute

	if firstV != 0 {
		percent := absolute / math.Abs(firstV) * 100
		trend.PercentChange = &percent
	}
}

func fillBooleanTrend(trend *models.Trend) {
	trueCount, falseCount := 0, 0
	for i := range trend.Points {
		v := trend.Points[i].Value.Bool
		if v == nil {
			continue
		}
		if *v {
			trueCount++
		} else {
			falseCount++
		}
	}
	total := trueCount + falseCount
	trend.TrueCount = &trueCount
	trend.FalseCount = &falseCount
	if total > 0 {
		freq := float64(trueCount) / float64(total)
		trend.TrueFrequency = &freq
	}
}
