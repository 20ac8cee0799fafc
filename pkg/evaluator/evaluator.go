// Package evaluator derives classifications from submitted metric
// values and threshold configuration. It is pure: no state, no I/O.
package evaluator

import (
	"fmt"

	"kpm-monitor/pkg/models"
)

// Evaluate classifies a numeric value against threshold bands. Most
// severe wins: red bounds are checked before yellow bounds, so the
// same configuration supports lower-is-better (max bounds only),
// higher-is-better (min bounds only), and range-based shapes
// (yellow bounds only; out-of-band values stay YELLOW).
func Evaluate(value float64, t models.Thresholds) models.Classification {
	if t.RedMin != nil && value < *t.RedMin {
		return models.ClassRed
	}
	if t.RedMax != nil && value > *t.RedMax {
		return models.ClassRed
	}
	if t.YellowMin != nil && value < *t.YellowMin {
		return models.ClassYellow
	}
	if t.YellowMax != nil && value > *t.YellowMax {
		return models.ClassYellow
	}
	return models.ClassGreen
}

// Classify derives the stored classification for a non-skipped result.
// Quantitative metrics require a numeric value; qualitative and
// outcome-only metrics take the operator-selected outcome code directly,
// or nil when no outcome is mapped.
func Classify(kind models.EvaluationKind, t models.Thresholds, value *float64, outcomeCode *string) (*models.Classification, error) {
	switch kind {
	case models.KindQuantitative:
		if value == nil {
			return nil, models.NewValidationError("value", "quantitative metric requires a numeric value")
		}
		c := Evaluate(*value, t)
		return &c, nil

	case models.KindQualitative, models.KindOutcomeOnly:
		if outcomeCode == nil {
			return nil, nil // qualitative with no mapping
		}
		if !models.ValidClassification(*outcomeCode) {
			return nil, models.NewValidationError("outcome_code", fmt.Sprintf("unknown outcome code %q", *outcomeCode))
		}
		c := models.Classification(*outcomeCode)
		return &c, nil

	default:
		return nil, models.NewValidationError("kind", fmt.Sprintf("unknown evaluation kind %q", kind))
	}
}

// ValidateThresholds rejects inverted or degenerate bands. This runs at
// MetricDefinition write time; evaluation assumes bands are sane.
func ValidateThresholds(t models.Thresholds) error {
	if t.RedMax != nil && t.YellowMax != nil && *t.RedMax <= *t.YellowMax {
		return models.NewValidationError("red_max", "red_max must be greater than yellow_max")
	}
	if t.RedMin != nil && t.YellowMin != nil && *t.RedMin >= *t.YellowMin {
		return models.NewValidationError("red_min", "red_min must be less than yellow_min")
	}
	return nil
}
