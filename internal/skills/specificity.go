package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/prompts"
)

// DefaultSpecificity is assumed for skills the model did not rate
const DefaultSpecificity = 0.5

// SpecificityRating is the model's rating of one skill
type SpecificityRating struct {
	SkillName   string  `json:"skill_name"`
	Specificity float64 `json:"specificity"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// JudgeSkillSpecificity asks the model how concrete each skill is, keyed by
// the normalized skill name. Every requested skill gets a score in [0, 1].
func JudgeSkillSpecificity(ctx context.Context, skillNames []string, client llm.Client) (map[string]float64, error) {
	if len(skillNames) == 0 {
		return map[string]float64{}, nil
	}

	prompt, err := prompts.Render("screening.json", "skill-specificity", map[string]any{"Skills": skillNames})
	if err != nil {
		return nil, err
	}
	response, err := client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("specificity request: %w", err)
	}

	ratings, err := decodeRatings(llm.CleanJSONBlock(response))
	if err != nil {
		return nil, fmt.Errorf("specificity response: %w", err)
	}
	return specificityScores(ratings, skillNames), nil
}

// decodeRatings accepts a bare array or an object wrapping one, which is
// what JSON mode providers return
func decodeRatings(doc string) ([]SpecificityRating, error) {
	var ratings []SpecificityRating
	if strings.HasPrefix(doc, "[") {
		if err := json.Unmarshal([]byte(doc), &ratings); err != nil {
			return nil, err
		}
		return ratings, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &wrapped); err != nil {
		return nil, err
	}
	for _, raw := range wrapped {
		if err := json.Unmarshal(raw, &ratings); err == nil {
			return ratings, nil
		}
	}
	return nil, fmt.Errorf("no rating list in %d keys", len(wrapped))
}

func specificityScores(ratings []SpecificityRating, requested []string) map[string]float64 {
	scores := make(map[string]float64, len(requested))
	for _, r := range ratings {
		scores[normalizeName(r.SkillName)] = min(max(r.Specificity, 0), 1)
	}
	for _, name := range requested {
		key := normalizeName(name)
		if _, ok := scores[key]; !ok {
			scores[key] = DefaultSpecificity
		}
	}
	return scores
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
