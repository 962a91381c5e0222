package parsing

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

// Education levels, lowest to highest
const (
	LevelHighSchool = "high_school"
	LevelAssociate  = "associate"
	LevelBachelor   = "bachelor"
	LevelMaster     = "master"
	LevelPhD        = "phd"
)

var degreeRank = map[string]int{
	LevelHighSchool: 1,
	LevelAssociate:  2,
	LevelBachelor:   3,
	LevelMaster:     4,
	LevelPhD:        5,
}

// DegreeRank orders education levels; unknown levels rank 0
func DegreeRank(level string) int {
	return degreeRank[strings.ToLower(strings.TrimSpace(level))]
}

// levelPatterns run over folded text, highest level first so "PhD, MSc"
// reports the doctorate
var levelPatterns = []struct {
	level string
	re    *regexp.Regexp
}{
	{LevelPhD, regexp.MustCompile(`\b(?:ph\.?\s?d\b|doctor of philosophy\b|doctorate\b|tien si\b)`)},
	{LevelMaster, regexp.MustCompile(`\b(?:masters?\b|master's\b|m\.?sc\b|mba\b|m\.eng\b|thac si\b)`)},
	{LevelBachelor, regexp.MustCompile(`\b(?:bachelors?\b|bachelor's\b|b\.?sc\b|b\.eng\b|b\.a\.|b\.s\.|undergraduate\b|cu nhan\b|bang ky su\b|engineer's degree\b)`)},
	{LevelAssociate, regexp.MustCompile(`\b(?:associate'?s? degree\b|associate of\b|college diploma\b|cao dang\b)`)},
	{LevelHighSchool, regexp.MustCompile(`\b(?:high school\b|secondary school\b|thpt\b|trung hoc pho thong\b)`)},
}

var (
	institutionWords = regexp.MustCompile(`\b(?:university|college|institute|academy|polytechnic|school|dai hoc|hoc vien|truong|cao dang)\b`)
	yearPattern      = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)
	fieldPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:major(?:ing)?(?:\s+in)?|chuyên ngành|chuyen nganh|ngành|nganh)\s*:?\s+(\p{L}[\p{L}& ]{2,60})`),
		regexp.MustCompile(`(?i)\bin\s+(\p{L}[\p{L}& ]{2,60})`),
		regexp.MustCompile(`(?i)\bof\s+(\p{L}[\p{L}& ]{2,60})`),
	}
)

// DetectEducationLevel returns the highest level named in text, or ""
func DetectEducationLevel(text string) string {
	folded := textextract.Fold(text)
	for _, p := range levelPatterns {
		if p.re.MatchString(folded) {
			return p.level
		}
	}
	return ""
}

// extractEducation groups education lines into entries. A new entry starts
// when a line names an institution or degree the current entry already has.
// With sectioned=false only lines naming a degree are considered.
func extractEducation(lines []string, sectioned bool) []types.EducationEntry {
	var (
		entries []types.EducationEntry
		cur     *types.EducationEntry
		years   [][]int
	)
	for _, line := range nonEmpty(lines) {
		folded := textextract.Fold(line)
		level := DetectEducationLevel(line)
		hasInst := institutionWords.MatchString(folded)
		if !sectioned && level == "" {
			continue
		}

		if level != "" || hasInst {
			if cur == nil || (hasInst && cur.Institution != "") || (level != "" && cur.Level != "") {
				entries = append(entries, types.EducationEntry{})
				years = append(years, nil)
				cur = &entries[len(entries)-1]
			}
		}
		if cur == nil {
			continue
		}

		parts := splitEducationLine(line)
		if hasInst && cur.Institution == "" {
			cur.Institution = pickPart(parts, func(p string) bool { return institutionWords.MatchString(textextract.Fold(p)) })
		}
		if level != "" && cur.Level == "" {
			cur.Level = level
			cur.Degree = pickPart(parts, func(p string) bool { return DetectEducationLevel(p) != "" })
			cur.Field = fieldOf(cur.Degree)
		}
		for _, y := range yearPattern.FindAllString(line, -1) {
			v, _ := strconv.Atoi(y)
			years[len(years)-1] = append(years[len(years)-1], v)
		}
	}

	for i := range entries {
		ys := years[i]
		if len(ys) == 0 {
			continue
		}
		sort.Ints(ys)
		if len(ys) > 1 {
			entries[i].StartYear = ys[0]
		}
		entries[i].EndYear = ys[len(ys)-1]
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return latestYear(entries[i]) > latestYear(entries[j])
	})
	return entries
}

func latestYear(e types.EducationEntry) int {
	if e.EndYear != 0 {
		return e.EndYear
	}
	return e.StartYear
}

func splitEducationLine(line string) []string {
	var out []string
	for _, p := range headlineSplit.Split(line, -1) {
		if dr, ok := findDateRange(p, time.Time{}); ok {
			p = cutRange(p, dr)
		}
		p = yearPattern.ReplaceAllString(p, "")
		if p = trimHeadline(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pickPart(parts []string, match func(string) bool) string {
	for _, p := range parts {
		if match(p) {
			return p
		}
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

func fieldOf(degree string) string {
	for _, re := range fieldPatterns {
		if m := re.FindStringSubmatch(degree); m != nil {
			f := strings.TrimSpace(m[1])
			// "Bachelor of Science in X": the "of" match is the degree type
			if DetectEducationLevel(f) == "" && !strings.EqualFold(f, "science") && !strings.EqualFold(f, "arts") {
				return f
			}
		}
	}
	return ""
}
