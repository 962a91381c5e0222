package ranking

import (
	"sort"
	"strings"

	"github.com/jonathan/resume-screener/internal/parsing"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

// educationRequirements is what a posting asks of a candidate's education
type educationRequirements struct {
	MinLevel        string
	PreferredFields []string
}

// canonical study fields keyed by folded alias
var fieldAliases = map[string]string{
	"computer science":        "computer science",
	"khoa hoc may tinh":       "computer science",
	"software engineering":    "software engineering",
	"ky thuat phan mem":       "software engineering",
	"cong nghe phan mem":      "software engineering",
	"computer engineering":    "computer engineering",
	"ky thuat may tinh":       "computer engineering",
	"information technology":  "information technology",
	"cong nghe thong tin":     "information technology",
	"information systems":     "information systems",
	"he thong thong tin":      "information systems",
	"data science":            "data science",
	"khoa hoc du lieu":        "data science",
	"statistics":              "statistics",
	"thong ke":                "statistics",
	"mathematics":             "mathematics",
	"toan hoc":                "mathematics",
	"physics":                 "physics",
	"electrical engineering":  "electrical engineering",
	"dien tu vien thong":      "electronics",
	"electronics":             "electronics",
	"economics":               "economics",
	"kinh te":                 "economics",
	"business administration": "business administration",
	"quan tri kinh doanh":     "business administration",
	"finance":                 "finance",
	"tai chinh":               "finance",
	"accounting":              "accounting",
	"ke toan":                 "accounting",
	"marketing":               "marketing",
}

// educationRequirementsOf reads the minimum level and preferred fields from
// a posting. An explicit MinEducationLevel wins over the requirement text.
func educationRequirementsOf(posting *types.JobPosting) *educationRequirements {
	if posting == nil {
		return nil
	}
	req := &educationRequirements{MinLevel: strings.ToLower(posting.MinEducationLevel)}
	if req.MinLevel == "" {
		req.MinLevel = parsing.DetectEducationLevel(posting.Requirements)
	}

	folded := textextract.Fold(posting.Requirements)
	seen := make(map[string]bool)
	for alias, field := range fieldAliases {
		if strings.Contains(folded, alias) && !seen[field] {
			seen[field] = true
			req.PreferredFields = append(req.PreferredFields, field)
		}
	}
	sort.Strings(req.PreferredFields)

	if req.MinLevel == "" && len(req.PreferredFields) == 0 {
		return nil
	}
	return req
}

// computeEducationScore scores the candidate's highest degree against the
// posting's education requirements
func computeEducationScore(cv *types.ProcessedCvData, posting *types.JobPosting) float64 {
	level, field := highestEducation(cv)
	return computeEducationRuleScore(level, field, educationRequirementsOf(posting))
}

func highestEducation(cv *types.ProcessedCvData) (level, field string) {
	if cv == nil {
		return "", ""
	}
	best := -1
	for _, e := range cv.Education {
		if r := parsing.DegreeRank(e.Level); r > best {
			best = r
			level, field = e.Level, e.Field
		}
	}
	if level == "" {
		level = cv.Professional.EducationLevel
	}
	return level, field
}

// computeEducationRuleScore computes rule-based score for education
func computeEducationRuleScore(level, field string, req *educationRequirements) float64 {
	if req == nil {
		return 1.0 // No requirements = full score
	}

	score := 0.0
	weights := 0.0

	// Degree level matching (60% weight)
	if req.MinLevel != "" {
		weights += 0.6
		reqRank := parsing.DegreeRank(req.MinLevel)
		eduRank := parsing.DegreeRank(level)

		if eduRank >= reqRank {
			score += 0.6
		} else if eduRank > 0 && eduRank == reqRank-1 {
			// One level below
			score += 0.3
		}
	}

	// Field matching (40% weight)
	if len(req.PreferredFields) > 0 {
		weights += 0.4
		score += 0.4 * computeFieldMatchScore(field, req.PreferredFields)
	}

	if weights == 0 {
		return 1.0
	}
	return score / weights
}

// relatedFields lists fields that partially satisfy a preferred field
var relatedFields = map[string][]string{
	"computer science":       {"software engineering", "computer engineering", "information technology", "information systems"},
	"software engineering":   {"computer science", "computer engineering", "information technology"},
	"information technology": {"computer science", "software engineering", "information systems", "computer engineering"},
	"data science":           {"statistics", "mathematics", "computer science"},
	"statistics":             {"mathematics", "data science", "economics"},
	"mathematics":            {"statistics", "physics", "computer science"},
	"electrical engineering": {"computer engineering", "electronics"},
	"finance":                {"accounting", "economics", "business administration"},
	"accounting":             {"finance", "economics"},
}

// computeFieldMatchScore computes how well the education field matches
// preferred fields. An unknown field scores a neutral 0.5.
func computeFieldMatchScore(field string, preferredFields []string) float64 {
	folded := textextract.Fold(strings.TrimSpace(field))
	if folded == "" {
		return 0.5
	}
	if canonical, ok := fieldAliases[folded]; ok {
		folded = canonical
	}

	for _, preferred := range preferredFields {
		p := strings.ToLower(preferred)
		if folded == p || strings.Contains(folded, p) || strings.Contains(p, folded) {
			return 1.0
		}
	}

	for _, preferred := range preferredFields {
		for _, r := range relatedFields[strings.ToLower(preferred)] {
			if strings.Contains(folded, r) || strings.Contains(r, folded) {
				return 0.7 // Related field
			}
		}
	}

	return 0.2 // Unrelated field
}
