package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-screener/internal/types"
)

func ptr(v float64) *float64 { return &v }

func TestOverall_AllPresent(t *testing.T) {
	s := SubScores{Vector: ptr(0.8), Skills: ptr(0.6), Experience: ptr(1.0), Education: ptr(0.5)}
	score, ok := Overall(s, DefaultWeights())
	assert.True(t, ok)
	// 100 × (0.32 + 0.18 + 0.2 + 0.05)
	assert.InDelta(t, 75.0, score, 1e-9)
}

func TestOverall_AcceptsPercentInputs(t *testing.T) {
	fractions := SubScores{Vector: ptr(0.8), Skills: ptr(0.6), Experience: ptr(1.0), Education: ptr(0.5)}
	percents := SubScores{Vector: ptr(80), Skills: ptr(60), Experience: ptr(100), Education: ptr(50), Scale: ScalePercent}

	a, _ := Overall(fractions, DefaultWeights())
	b, _ := Overall(percents, DefaultWeights())
	assert.Equal(t, a, b)
}

func TestOverall_RedistributesMissingWeight(t *testing.T) {
	// vector missing: remaining weights 0.3/0.2/0.1 scale to 0.5/0.333/0.167
	s := SubScores{Skills: ptr(1.0), Experience: ptr(0.5), Education: ptr(0.0)}
	score, ok := Overall(s, DefaultWeights())
	assert.True(t, ok)
	assert.InDelta(t, 100*(0.3+0.1)/0.6, score, 0.01)

	_, ok = Overall(SubScores{}, DefaultWeights())
	assert.False(t, ok)
}

func TestOverall_Bounds(t *testing.T) {
	values := []float64{-5, 0, 0.25, 0.5, 1, 42, 100, 250}
	for _, v := range values {
		for _, w := range []Weights{DefaultWeights(), {Vector: 1}, {Skills: 0.5, Education: 0.5}} {
			for _, scale := range []Scale{ScaleUnit, ScalePercent} {
				s := SubScores{Vector: ptr(v), Skills: ptr(v), Experience: ptr(v), Education: ptr(v), Scale: scale}
				score, ok := Overall(s, w)
				assert.True(t, ok)
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 100.0)
			}
		}
	}
}

func TestOverall_MonotonicInEachSubScore(t *testing.T) {
	fields := []func(*SubScores, float64){
		func(s *SubScores, v float64) { s.Vector = ptr(v) },
		func(s *SubScores, v float64) { s.Skills = ptr(v) },
		func(s *SubScores, v float64) { s.Experience = ptr(v) },
		func(s *SubScores, v float64) { s.Education = ptr(v) },
	}
	scales := []struct {
		scale Scale
		max   float64
	}{
		{ScaleUnit, 1},
		{ScalePercent, 100},
	}
	for _, sc := range scales {
		mid := sc.max / 2
		for i, set := range fields {
			prev := -1.0
			for step := 0; step <= 200; step++ {
				s := SubScores{Vector: ptr(mid), Skills: ptr(mid), Experience: ptr(mid), Education: ptr(mid), Scale: sc.scale}
				set(&s, sc.max*float64(step)/200)
				score, _ := Overall(s, DefaultWeights())
				assert.GreaterOrEqual(t, score, prev, "scale %d sub-score %d step %d", sc.scale, i, step)
				prev = score
			}
		}
	}
}

func TestOverall_PercentSmallValues(t *testing.T) {
	base := SubScores{Vector: ptr(50), Skills: ptr(1), Experience: ptr(50), Education: ptr(50), Scale: ScalePercent}
	one, _ := Overall(base, DefaultWeights())
	base.Skills = ptr(2)
	two, _ := Overall(base, DefaultWeights())
	assert.Greater(t, two, one)
	assert.InDelta(t, 35.6, two, 1e-9)
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeScore(-0.2, ScaleUnit))
	assert.Equal(t, 0.42, NormalizeScore(0.42, ScaleUnit))
	assert.Equal(t, 1.0, NormalizeScore(1, ScaleUnit))
	assert.Equal(t, 1.0, NormalizeScore(42, ScaleUnit))
	assert.InDelta(t, 0.42, NormalizeScore(42, ScalePercent), 1e-9)
	assert.InDelta(t, 0.01, NormalizeScore(1, ScalePercent), 1e-9)
	assert.Equal(t, 1.0, NormalizeScore(180, ScalePercent))
}

func TestThresholds_Tier(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score float64
		want  types.FitTier
	}{
		{100, types.FitStrong},
		{80, types.FitStrong},
		{79.99, types.FitGood},
		{65, types.FitGood},
		{64.9, types.FitModerate},
		{50, types.FitModerate},
		{49.99, types.FitPoor},
		{0, types.FitPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Tier(tt.score), "score %v", tt.score)
	}

	custom := Thresholds{Strong: 90, Good: 70, Moderate: 40}
	assert.Equal(t, types.FitGood, custom.Tier(85))
}
