package catalog

import (
	"fmt"
	"math"

	"github.com/vitalis-health/platform/pkg/common/models"
)

// Source reliability is a closed table: confidence is assigned by the
// platform from capture provenance, never supplied by callers.
const (
	reliabilityDevice        = 0.95
	reliabilityCheckIn       = 0.90
	reliabilityOnboarding    = 0.85
	reliabilityChatConfirmed = 0.85
	reliabilityManual        = 0.72
)

// confirmationBoost is added to the extractor's confidence when a proposal is
// confirmed, capped at the chat_confirmed source ceiling.
const confirmationBoost = 0.15

// Reliability returns the confidence assigned to observations from the given
// source. The source set is closed; an unknown source is a programming error.
func Reliability(source models.CaptureSource) float64 {
	r, err := reliabilityOf(source)
	if err != nil {
		panic(err)
	}
	return r
}

func reliabilityOf(source models.CaptureSource) (float64, error) {
	switch source {
	case models.SourceDevice:
		return reliabilityDevice, nil
	case models.SourceCheckIn:
		return reliabilityCheckIn, nil
	case models.SourceOnboarding:
		return reliabilityOnboarding, nil
	case models.SourceChatConfirmed:
		return reliabilityChatConfirmed, nil
	case models.SourceManual:
		return reliabilityManual, nil
	default:
		return 0, fmt.Errorf("unknown capture source %q", source)
	}
}

// ConfirmedConfidence computes the confidence of an instance produced by
// confirming an AI proposal: the extractor's confidence boosted, capped at
// the chat_confirmed ceiling.
func ConfirmedConfidence(aiConfidence float64) float64 {
	return math.Min(aiConfidence+confirmationBoost, reliabilityChatConfirmed)
}
