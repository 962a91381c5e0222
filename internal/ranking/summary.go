package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/prompts"
)

const maxSummaryItems = 5

// Summary is the narrative part of a screening result
type Summary struct {
	Summary       string   `json:"summary"`
	KeyHighlights []string `json:"key_highlights"`
	Concerns      []string `json:"concerns"`
	// Generated is false for the rule-based fallback
	Generated bool `json:"-"`
}

// Summarize asks the LLM for a screening summary of a scored application
func Summarize(ctx context.Context, client llm.Client, tier llm.ModelTier, in Input, b *Breakdown) (*Summary, error) {
	if client == nil {
		return nil, errors.New("no LLM client configured")
	}

	jsonResp, err := client.GenerateJSON(ctx, buildSummaryPrompt(in, b), tier)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	jsonResp = llm.CleanJSONBlock(jsonResp)

	var s Summary
	if err := json.Unmarshal([]byte(jsonResp), &s); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w (content: %s)", err, logging.TruncateForLog(jsonResp, 200))
	}
	s.Summary = strings.TrimSpace(s.Summary)
	if s.Summary == "" {
		return nil, errors.New("LLM returned an empty summary")
	}
	s.KeyHighlights = capItems(s.KeyHighlights)
	s.Concerns = capItems(s.Concerns)
	s.Generated = true
	return &s, nil
}

// SummarizeWithFallback returns the LLM summary, or the rule-based one
// when the LLM is unavailable or answers badly
func SummarizeWithFallback(ctx context.Context, client llm.Client, tier llm.ModelTier, in Input, b *Breakdown, logger *zap.Logger) *Summary {
	if client != nil {
		s, err := Summarize(ctx, client, tier, in, b)
		if err == nil {
			return s
		}
		logging.OrNop(logger).Warn("AI summary failed, using rule-based summary", zap.Error(err))
	}
	return &Summary{
		Summary:       RuleSummary(b),
		KeyHighlights: capItems(b.Highlights),
		Concerns:      capItems(b.Concerns),
	}
}

func capItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
		if len(out) == maxSummaryItems {
			break
		}
	}
	return out
}

// buildSummaryPrompt constructs the prompt for the screening summary
func buildSummaryPrompt(in Input, b *Breakdown) string {
	data := map[string]string{
		"JobTitle":        "Not specified",
		"MinYears":        "not specified",
		"MinEducation":    "not specified",
		"Requirements":    "Not specified",
		"CurrentRole":     "Unknown",
		"Years":           "0",
		"Education":       "Unknown",
		"Skills":          "None found",
		"MatchedSkills":   orNone(b.MatchedSkills),
		"MissingSkills":   orNone(b.MissingSkills),
		"Overall":         "n/a",
		"FitTier":         string(b.FitTier),
		"SkillsScore":     pct(b.Skills),
		"ExperienceScore": pct(b.Experience),
		"EducationScore":  pct(b.Education),
		"Similarity":      pct(b.Vector),
	}

	if b.Overall != nil {
		data["Overall"] = fmt.Sprintf("%.0f", *b.Overall)
	}

	if p := in.Posting; p != nil {
		if p.Title != "" {
			data["JobTitle"] = p.Title
		}
		if y := requiredYears(p); y > 0 {
			data["MinYears"] = fmt.Sprintf("%.0f", y)
		}
		if req := educationRequirementsOf(p); req != nil && req.MinLevel != "" {
			data["MinEducation"] = req.MinLevel
		}
		if r := strings.TrimSpace(p.Requirements); r != "" {
			data["Requirements"] = logging.TruncateForLog(r, 1500)
		}
	}

	if cv := in.CV; cv != nil {
		if len(cv.Experience) > 0 {
			role := cv.Experience[0].Title
			if cv.Experience[0].Company != "" {
				role += " at " + cv.Experience[0].Company
			}
			if role != "" {
				data["CurrentRole"] = role
			}
		}
		data["Years"] = fmt.Sprintf("%.1f", cv.TotalYearsOfExperience)
		if level, field := highestEducation(cv); level != "" {
			data["Education"] = strings.TrimSpace(level + " " + field)
		}
		if all := append(cv.AllSkills(), cv.LanguageSkills...); len(all) > 0 {
			data["Skills"] = strings.Join(all, ", ")
		}
	}

	return llm.StructuredPrompt{
		Task:   prompts.MustRender("screening.json", "candidate-summary-task", nil),
		Fields: summaryFields,
		Input:  prompts.MustRender("screening.json", "candidate-summary-input", data),
	}.Render()
}

var summaryFields = []llm.OutputField{
	{Name: "summary", Hint: "two to four sentences on how well the candidate fits the role"},
	{Name: "key_highlights", Example: `["string"]`, Hint: "strengths relevant to the role, at most five"},
	{Name: "concerns", Example: `["string"]`, Hint: "gaps or risks against the requirements, at most five"},
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// pct renders a 0-1 sub-score on the 0-100 scale
func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f", *v*100)
}
