package ranking

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/resume-screener/internal/types"
)

// Input is everything needed to score one application. Similarities are
// nil when the embedding stage degraded.
type Input struct {
	CV               *types.ProcessedCvData
	Posting          *types.JobPosting
	Targets          *types.SkillTargets
	VectorSimilarity *float64
	ChunkSimilarity  *float64
}

// Breakdown is the scored result of one application
type Breakdown struct {
	SubScores
	// Overall is nil when no sub-score could be computed
	Overall       *float64
	FitTier       types.FitTier
	MatchedSkills []string
	MissingSkills []string
	Highlights    []string
	Concerns      []string
}

// Scorer computes sub-scores, the overall score and fit tier
type Scorer struct {
	weights    Weights
	thresholds Thresholds
	now        func() time.Time
}

// NewScorer creates a Scorer
func NewScorer(weights Weights, thresholds Thresholds) *Scorer {
	return &Scorer{weights: weights, thresholds: thresholds, now: time.Now}
}

// WithClock returns a copy of s that measures recency against now
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.now = now
	return &c
}

// Score computes the breakdown for one application. Sub-scores are in 0-1;
// Overall is 0-100.
func (s *Scorer) Score(in Input) *Breakdown {
	b := &Breakdown{}

	b.Vector = vectorScore(in.VectorSimilarity, in.ChunkSimilarity)

	if in.Targets != nil && len(in.Targets.Skills) > 0 {
		score, matched, missing := computeSkillsScore(in.CV, in.Targets)
		b.Skills = &score
		b.MatchedSkills = matched
		b.MissingSkills = missing
	}

	if in.CV != nil {
		exp := computeExperienceScore(in.CV, in.Posting, s.now())
		b.Experience = &exp
		edu := computeEducationScore(in.CV, in.Posting)
		b.Education = &edu
	}

	if overall, ok := Overall(b.SubScores, s.weights); ok {
		b.Overall = &overall
		b.FitTier = s.thresholds.Tier(overall)
	}

	b.Highlights, b.Concerns = generateNotes(in, b)
	return b
}

// vectorScore is the full-text similarity, or the best chunk-pair
// similarity when the full text could not be compared
func vectorScore(full, chunk *float64) *float64 {
	src := full
	if src == nil {
		src = chunk
	}
	if src == nil {
		return nil
	}
	v := NormalizeScore(*src, ScaleUnit)
	return &v
}

// generateNotes creates rule-based highlights and concerns. They are the
// screening summary when no LLM is available.
func generateNotes(in Input, b *Breakdown) (highlights, concerns []string) {
	if len(b.MatchedSkills) > 0 && b.Skills != nil {
		switch {
		case *b.Skills >= 0.7:
			highlights = append(highlights, fmt.Sprintf("Strong skill match (%s)", strings.Join(b.MatchedSkills, ", ")))
		case *b.Skills >= 0.4:
			highlights = append(highlights, fmt.Sprintf("Moderate skill match (%s)", strings.Join(b.MatchedSkills, ", ")))
		default:
			highlights = append(highlights, fmt.Sprintf("Weak skill match (%s)", strings.Join(b.MatchedSkills, ", ")))
		}
	} else if b.Skills != nil {
		concerns = append(concerns, "No skill matches")
	}
	if len(b.MissingSkills) > 0 {
		concerns = append(concerns, fmt.Sprintf("Missing required skills: %s", strings.Join(b.MissingSkills, ", ")))
	}

	if in.CV != nil {
		years := in.CV.TotalYearsOfExperience
		required := requiredYears(in.Posting)
		switch {
		case required > 0 && years >= required:
			highlights = append(highlights, fmt.Sprintf("%.1f years of experience (%.0f required)", years, required))
		case required > 0:
			concerns = append(concerns, fmt.Sprintf("%.1f years of experience, below the %.0f required", years, required))
		case years > 0:
			highlights = append(highlights, fmt.Sprintf("%.1f years of experience", years))
		}
		if len(in.CV.Experience) > 0 && in.CV.Experience[0].Title != "" {
			role := in.CV.Experience[0].Title
			if c := in.CV.Experience[0].Company; c != "" {
				role += " at " + c
			}
			highlights = append(highlights, "Most recent role: "+role)
		}
	}

	if b.Education != nil && *b.Education < 0.5 {
		concerns = append(concerns, "Education below the posting's requirements")
	}

	if b.Vector == nil {
		concerns = append(concerns, "Semantic similarity unavailable")
	} else if *b.Vector >= 0.75 {
		highlights = append(highlights, "Résumé closely matches the job description")
	}

	return highlights, concerns
}

// RuleSummary renders a breakdown as a short plain-text summary
func RuleSummary(b *Breakdown) string {
	if b == nil || b.Overall == nil {
		return "Not enough information to score this candidate."
	}
	s := fmt.Sprintf("Overall score %.0f/100 (%s).", *b.Overall, strings.ReplaceAll(string(b.FitTier), "_", " "))
	if len(b.Highlights) > 0 {
		s += " " + b.Highlights[0] + "."
	}
	if len(b.Concerns) > 0 {
		s += " Main concern: " + b.Concerns[0] + "."
	}
	return s
}
