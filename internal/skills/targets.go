// Package skills builds weighted skill targets from job postings.
package skills

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/parsing"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

const (
	// Weight constants for skill sources (requirement level)
	weightHardRequirement = 1.0
	weightNiceToHave      = 0.5
	weightKeyword         = 0.3

	// Source constants
	SourceHardRequirement = "hard_requirement"
	SourceNiceToHave      = "nice_to_have"
	SourceKeyword         = "keyword"
)

// ErrNoSkills is returned when a posting names no recognizable skill
var ErrNoSkills = errors.New("no skills found in job posting")

// matched against folded requirement lines
var niceMarker = regexp.MustCompile(`nice[ -]to[ -]have|preferred|\ba plus\b|\bbonus\b|plus point|uu tien|loi the|diem cong`)

// Requirements lists the skill names a posting asks for, by strength
type Requirements struct {
	Required   []string
	NiceToHave []string
	Keywords   []string
}

// RequirementsFromPosting matches the skill taxonomy against a posting.
// Skills on requirement lines are required unless the line, or the
// heading it sits under, marks them nice to have. Skills mentioned only
// in the title or description are keywords.
func RequirementsFromPosting(posting *types.JobPosting) Requirements {
	var req Requirements
	if posting == nil {
		return req
	}

	inNice := false
	for _, line := range strings.Split(posting.Requirements, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		matches := parsing.MatchSkills(line)
		nice := niceMarker.MatchString(textextract.Fold(line))
		if len(matches) == 0 {
			// a heading such as "Nice to have:" or "Requirements:"
			if strings.HasSuffix(line, ":") {
				inNice = nice
			}
			continue
		}
		for _, m := range matches {
			if nice || inNice {
				req.NiceToHave = append(req.NiceToHave, m.Name)
			} else {
				req.Required = append(req.Required, m.Name)
			}
		}
	}

	for _, m := range parsing.MatchSkills(posting.Title + "\n" + posting.Description) {
		req.Keywords = append(req.Keywords, m.Name)
	}
	return req
}

// ForPosting builds skill targets straight from a posting
func ForPosting(posting *types.JobPosting) (*types.SkillTargets, error) {
	return BuildSkillTargets(RequirementsFromPosting(posting))
}

// BuildSkillTargets builds a weighted list of target skills from Requirements.
// Skills are normalized, deduplicated (taking max weight when duplicates exist),
// and sorted by weight (descending), then name.
func BuildSkillTargets(req Requirements) (*types.SkillTargets, error) {
	// Map: normalized skill name -> skill info (weight, source)
	skillMap := make(map[string]*skillInfo)

	for _, s := range req.Required {
		if name := parsing.NormalizeSkillName(s); name != "" {
			addOrUpdateSkill(skillMap, name, weightHardRequirement, SourceHardRequirement)
		}
	}
	for _, s := range req.NiceToHave {
		if name := parsing.NormalizeSkillName(s); name != "" {
			addOrUpdateSkill(skillMap, name, weightNiceToHave, SourceNiceToHave)
		}
	}
	for _, s := range req.Keywords {
		if name := parsing.NormalizeSkillName(s); name != "" {
			addOrUpdateSkill(skillMap, name, weightKeyword, SourceKeyword)
		}
	}

	if len(skillMap) == 0 {
		return nil, ErrNoSkills
	}

	skills := make([]types.Skill, 0, len(skillMap))
	for name, info := range skillMap {
		skills = append(skills, types.Skill{
			Name:   name,
			Weight: info.weight,
			Source: info.source,
		})
	}
	sortSkills(skills)

	return &types.SkillTargets{Skills: skills}, nil
}

// BuildSkillTargetsWithSpecificity builds skill targets and applies LLM-judged specificity.
// specificityWeight controls the blend: FinalWeight = ReqWeight * (1-ratio) + Specificity * ratio.
// A failed judgment leaves the base weights in place.
func BuildSkillTargetsWithSpecificity(
	ctx context.Context,
	req Requirements,
	client llm.Client,
	specificityWeight float64,
	logger *zap.Logger,
) (*types.SkillTargets, error) {
	targets, err := BuildSkillTargets(req)
	if err != nil {
		return nil, err
	}

	if client == nil || specificityWeight <= 0 {
		return targets, nil
	}

	skillNames := make([]string, len(targets.Skills))
	for i, skill := range targets.Skills {
		skillNames[i] = skill.Name
	}

	specificityScores, err := JudgeSkillSpecificity(ctx, skillNames, client)
	if err != nil {
		logging.OrNop(logger).Warn("skill specificity unavailable, using requirement weights", zap.Error(err))
		return targets, nil
	}

	for i := range targets.Skills {
		skill := &targets.Skills[i]
		specificity := specificityScores[normalizeName(skill.Name)]
		// both terms are already in 0-1
		skill.Weight = skill.Weight*(1-specificityWeight) + specificity*specificityWeight
	}
	sortSkills(targets.Skills)

	return targets, nil
}

func sortSkills(skills []types.Skill) {
	sort.Slice(skills, func(i, j int) bool {
		if skills[i].Weight != skills[j].Weight {
			return skills[i].Weight > skills[j].Weight
		}
		return skills[i].Name < skills[j].Name
	})
}

// skillInfo holds temporary information about a skill during building
type skillInfo struct {
	weight float64
	source string
}

// addOrUpdateSkill adds a skill to the map or updates it if it exists,
// taking the maximum weight when duplicates are found.
func addOrUpdateSkill(skillMap map[string]*skillInfo, skillName string, weight float64, source string) {
	if existing, exists := skillMap[skillName]; exists {
		if weight > existing.weight {
			existing.weight = weight
			existing.source = source
		}
		// If weights are equal, prioritize source by: hard_requirement > nice_to_have > keyword
		if weight == existing.weight && getSourcePriority(source) > getSourcePriority(existing.source) {
			existing.source = source
		}
		return
	}
	skillMap[skillName] = &skillInfo{weight: weight, source: source}
}

// getSourcePriority returns a numeric priority for source types.
// Higher numbers indicate higher priority.
func getSourcePriority(source string) int {
	switch source {
	case SourceHardRequirement:
		return 3
	case SourceNiceToHave:
		return 2
	case SourceKeyword:
		return 1
	default:
		return 0
	}
}
