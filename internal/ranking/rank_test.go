package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-screener/internal/types"
)

func testScorer() *Scorer {
	return NewScorer(DefaultWeights(), DefaultThresholds()).WithClock(func() time.Time { return testNow })
}

func strongCandidate() *types.ProcessedCvData {
	cv := &types.ProcessedCvData{
		TotalYearsOfExperience: 6,
		Experience: []types.ExperienceEntry{
			{Title: "Senior Backend Engineer", Company: "Acme", StartDate: "2021-01", EndDate: "present"},
		},
		Education: []types.EducationEntry{{Level: "bachelor", Field: "Computer Science", EndYear: 2018}},
	}
	cv.ProgrammingLanguages = []string{"Go"}
	cv.TechnicalSkills = []string{"PostgreSQL", "Docker"}
	return cv
}

func backendPosting() *types.JobPosting {
	return &types.JobPosting{
		Title:              "Backend Engineer",
		MinYearsExperience: 4,
		MinEducationLevel:  "bachelor",
	}
}

func backendTargets() *types.SkillTargets {
	return &types.SkillTargets{Skills: []types.Skill{
		{Name: "Go", Weight: 1.0, Source: "hard_requirement"},
		{Name: "PostgreSQL", Weight: 1.0, Source: "hard_requirement"},
		{Name: "Kubernetes", Weight: 0.5, Source: "nice_to_have"},
	}}
}

func TestScore_StrongCandidate(t *testing.T) {
	b := testScorer().Score(Input{
		CV:               strongCandidate(),
		Posting:          backendPosting(),
		Targets:          backendTargets(),
		VectorSimilarity: ptr(0.82),
		ChunkSimilarity:  ptr(0.9),
	})

	require.NotNil(t, b.Overall)
	assert.InDelta(t, 0.86, *b.Vector, 1e-9)
	assert.InDelta(t, 2.0/2.5, *b.Skills, 1e-9)
	assert.InDelta(t, 1.0, *b.Experience, 1e-9)
	assert.InDelta(t, 1.0, *b.Education, 1e-9)
	// 100 × (0.4·0.86 + 0.3·0.8 + 0.2 + 0.1)
	assert.InDelta(t, 88.4, *b.Overall, 0.01)
	assert.Equal(t, types.FitStrong, b.FitTier)

	assert.Equal(t, []string{"Go", "PostgreSQL"}, b.MatchedSkills)
	assert.Empty(t, b.MissingSkills)
	assert.Contains(t, b.Highlights, "Strong skill match (Go, PostgreSQL)")
	assert.Contains(t, b.Highlights, "6.0 years of experience (4 required)")
	assert.Contains(t, b.Highlights, "Most recent role: Senior Backend Engineer at Acme")
	assert.Contains(t, b.Highlights, "Résumé closely matches the job description")
	assert.Empty(t, b.Concerns)
}

func TestScore_EmbeddingDegraded(t *testing.T) {
	cv := strongCandidate()
	cv.TotalYearsOfExperience = 2
	cv.ProgrammingLanguages = nil

	b := testScorer().Score(Input{CV: cv, Posting: backendPosting(), Targets: backendTargets()})

	assert.Nil(t, b.Vector)
	require.NotNil(t, b.Overall)
	assert.Equal(t, []string{"Go"}, b.MissingSkills)
	assert.Contains(t, b.Concerns, "Semantic similarity unavailable")
	assert.Contains(t, b.Concerns, "Missing required skills: Go")
	assert.Contains(t, b.Concerns, "2.0 years of experience, below the 4 required")
}

func TestScore_NothingToScore(t *testing.T) {
	b := testScorer().Score(Input{Posting: backendPosting()})
	assert.Nil(t, b.Overall)
	assert.Empty(t, b.FitTier)
	assert.Equal(t, "Not enough information to score this candidate.", RuleSummary(b))
}

func TestScore_BetterCandidateNeverScoresLower(t *testing.T) {
	weak := strongCandidate()
	weak.TotalYearsOfExperience = 1
	weak.TechnicalSkills = nil

	s := testScorer()
	in := Input{Posting: backendPosting(), Targets: backendTargets(), VectorSimilarity: ptr(0.6)}

	in.CV = weak
	low := s.Score(in)
	in.CV = strongCandidate()
	high := s.Score(in)

	assert.Greater(t, *high.Overall, *low.Overall)
}

func TestScore_Deterministic(t *testing.T) {
	in := Input{CV: strongCandidate(), Posting: backendPosting(), Targets: backendTargets(), VectorSimilarity: ptr(0.7)}
	s := testScorer()
	assert.Equal(t, s.Score(in), s.Score(in))
}

func TestVectorScore(t *testing.T) {
	assert.Nil(t, vectorScore(nil, nil))
	assert.InDelta(t, 0.6, *vectorScore(ptr(0.6), nil), 1e-9)
	assert.InDelta(t, 0.8, *vectorScore(nil, ptr(0.8)), 1e-9)
	assert.InDelta(t, 0.4, *vectorScore(ptr(0.4), ptr(0.6)), 1e-9)
	assert.Equal(t, 1.0, *vectorScore(ptr(1.3), nil))
}

func TestScore_VectorTermIsFullTextSimilarity(t *testing.T) {
	s := NewScorer(Weights{Vector: 1}, DefaultThresholds())
	b := s.Score(Input{VectorSimilarity: ptr(0.9), ChunkSimilarity: ptr(0.3)})

	require.NotNil(t, b.Overall)
	assert.InDelta(t, 90.0, *b.Overall, 1e-9)
	assert.Equal(t, types.FitStrong, b.FitTier)

	b = s.Score(Input{ChunkSimilarity: ptr(0.3)})
	require.NotNil(t, b.Overall)
	assert.InDelta(t, 30.0, *b.Overall, 1e-9)
}

func TestRuleSummary(t *testing.T) {
	b := &Breakdown{
		Overall:    ptr(71.5),
		FitTier:    types.FitGood,
		Highlights: []string{"Strong skill match (Go)"},
		Concerns:   []string{"Semantic similarity unavailable"},
	}
	assert.Equal(t, "Overall score 72/100 (good fit). Strong skill match (Go). Main concern: Semantic similarity unavailable.", RuleSummary(b))
}
