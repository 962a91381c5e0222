// Package ranking scores a candidate against a job posting. Rule-based
// skills, experience and education sub-scores are blended with embedding
// similarity into an overall 0-100 score and a fit tier.
package ranking

import (
	"strings"
	"time"

	"github.com/jonathan/resume-screener/internal/parsing"
	"github.com/jonathan/resume-screener/internal/skills"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

// Experience sub-score components
const (
	yearsWeight     = 0.7
	relevanceWeight = 0.2
	recencyWeight   = 0.1
)

// computeSkillsScore is the weighted share of target skills the candidate
// has. Returns the score (0-1), the matched skills in target order and the
// required skills that were not found.
func computeSkillsScore(cv *types.ProcessedCvData, targets *types.SkillTargets) (float64, []string, []string) {
	if targets == nil || len(targets.Skills) == 0 {
		return 0, nil, nil
	}

	have := make(map[string]bool)
	if cv != nil {
		for _, list := range [][]string{cv.TechnicalSkills, cv.ProgrammingLanguages, cv.LanguageSkills} {
			for _, s := range list {
				if n := parsing.NormalizeSkillName(s); n != "" {
					have[strings.ToLower(n)] = true
				}
			}
		}
	}

	var (
		matchedWeight, totalWeight float64
		matched, missing           []string
	)
	for _, target := range targets.Skills {
		totalWeight += target.Weight
		name := parsing.NormalizeSkillName(target.Name)
		if have[strings.ToLower(name)] {
			matchedWeight += target.Weight
			matched = append(matched, name)
			continue
		}
		if target.Source == skills.SourceHardRequirement {
			missing = append(missing, name)
		}
	}

	if totalWeight <= 0 {
		return 0, matched, missing
	}
	return matchedWeight / totalWeight, matched, missing
}

// computeExperienceScore blends years against the requirement, how close
// past titles are to the posting title, and how recent the last role is
func computeExperienceScore(cv *types.ProcessedCvData, posting *types.JobPosting, now time.Time) float64 {
	if cv == nil {
		return 0
	}
	years := cv.TotalYearsOfExperience
	required := requiredYears(posting)

	var yearsScore float64
	switch {
	case required > 0:
		yearsScore = years / required
		if yearsScore > 1 {
			yearsScore = 1
		}
	case years > 0:
		yearsScore = 1
	default:
		yearsScore = 0.5 // nothing asked, nothing found
	}

	relevance := 0.0
	recency := 0.5
	if len(cv.Experience) > 0 {
		relevance = computeTitleRelevance(cv.Experience, posting)
		recency = computeRecencyScore(cv.Experience[0].EndDate, now)
	}

	return yearsWeight*yearsScore + relevanceWeight*relevance + recencyWeight*recency
}

func requiredYears(posting *types.JobPosting) float64 {
	if posting == nil {
		return 0
	}
	if posting.MinYearsExperience > 0 {
		return posting.MinYearsExperience
	}
	return parsing.RequiredYears(posting.Requirements + "\n" + posting.Description)
}

// words too common in job titles to count as overlap
var titleStopwords = map[string]bool{
	"senior": true, "junior": true, "lead": true, "intern": true, "and": true, "of": true,
	"the": true, "for": true, "in": true, "at": true, "sr": true, "jr": true, "mid": true,
	"level": true, "-": true, "/": true, "&": true, "vien": true,
}

// computeTitleRelevance is the best share of posting title words found in
// any past title
func computeTitleRelevance(entries []types.ExperienceEntry, posting *types.JobPosting) float64 {
	if posting == nil {
		return 0
	}
	want := titleWords(posting.Title)
	if len(want) == 0 {
		return 0
	}
	best := 0.0
	for _, e := range entries {
		got := titleWords(e.Title)
		n := 0
		for w := range want {
			if got[w] {
				n++
			}
		}
		if share := float64(n) / float64(len(want)); share > best {
			best = share
		}
	}
	return best
}

func titleWords(title string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(textextract.Fold(title)) {
		w = strings.Trim(w, ",.()")
		if w != "" && !titleStopwords[w] {
			out[w] = true
		}
	}
	return out
}

// computeRecencyScore scores how recently a role ended ("YYYY-MM" or
// "present"). Returns 0.5 as default if date parsing fails (neutral score).
func computeRecencyScore(endDate string, now time.Time) float64 {
	if endDate == parsing.Present {
		return 1.0
	}
	if endDate == "" {
		return 0.5
	}

	date, err := time.Parse("2006-01", endDate)
	if err != nil {
		return 0.5
	}

	yearsSince := now.Sub(date).Hours() / (24 * 365.25)

	// Linear decay: 0 years = 1.0, 10 years = 0.0
	maxYears := 10.0
	if yearsSince < 0 {
		return 1.0
	}
	if yearsSince >= maxYears {
		return 0.0
	}
	return 1.0 - (yearsSince / maxYears)
}
