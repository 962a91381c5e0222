package ranking

import (
	"math"

	"github.com/jonathan/resume-screener/internal/types"
)

// Weights blend the four sub-scores into the overall score. They are
// expected to sum to 1.0; config validation enforces that.
type Weights struct {
	Vector     float64
	Skills     float64
	Experience float64
	Education  float64
}

// DefaultWeights returns 0.4 vector, 0.3 skills, 0.2 experience, 0.1 education
func DefaultWeights() Weights {
	return Weights{Vector: 0.4, Skills: 0.3, Experience: 0.2, Education: 0.1}
}

// Thresholds are the lowest overall scores (0-100) of each fit tier
type Thresholds struct {
	Strong   float64
	Good     float64
	Moderate float64
}

// DefaultThresholds returns strong 80, good 65, moderate 50
func DefaultThresholds() Thresholds {
	return Thresholds{Strong: 80, Good: 65, Moderate: 50}
}

// Tier maps an overall score to its fit tier
func (t Thresholds) Tier(score float64) types.FitTier {
	switch {
	case score >= t.Strong:
		return types.FitStrong
	case score >= t.Good:
		return types.FitGood
	case score >= t.Moderate:
		return types.FitModerate
	default:
		return types.FitPoor
	}
}

// Scale is the range sub-scores are given on
type Scale int

const (
	// ScaleUnit is 0-1, the scale the scorer produces
	ScaleUnit Scale = iota
	// ScalePercent is 0-100
	ScalePercent
)

// SubScores holds the inputs of the overall score. A nil field is a
// sub-score that could not be computed. All fields share Scale.
type SubScores struct {
	Vector     *float64
	Skills     *float64
	Experience *float64
	Education  *float64
	Scale      Scale
}

// NormalizeScore maps v on scale to 0-1, clamping out-of-range values
func NormalizeScore(v float64, scale Scale) float64 {
	if scale == ScalePercent {
		v /= 100
	}
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return math.Min(v, 1)
}

// Overall computes 100 × Σ wᵢ·sᵢ over the present sub-scores. The weight
// of a missing sub-score is redistributed proportionally over the present
// ones. ok is false when no weighted sub-score is present.
func Overall(s SubScores, w Weights) (score float64, ok bool) {
	parts := []struct {
		v *float64
		w float64
	}{
		{s.Vector, w.Vector},
		{s.Skills, w.Skills},
		{s.Experience, w.Experience},
		{s.Education, w.Education},
	}

	sum, present := 0.0, 0.0
	for _, p := range parts {
		if p.v == nil || p.w <= 0 {
			continue
		}
		sum += p.w * NormalizeScore(*p.v, s.Scale)
		present += p.w
	}
	if present == 0 {
		return 0, false
	}
	return round2(100 * sum / present), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
