// Package parsing turns résumé text into structured candidate data:
// contact details, skills matched against a taxonomy with aliasing,
// dated experience and education entries, and a summary. Extraction is
// best effort; every field may come back empty.
package parsing

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

const maxSummaryRunes = 600

var (
	titleCaser = cases.Title(language.Und)

	skillListSplit = regexp.MustCompile(`\s*[,;|•]\s*|\s+-\s+`)
	skillLabel     = regexp.MustCompile(`^[^:]{1,40}:\s*`)
)

// Extractor extracts ProcessedCvData from résumé text
type Extractor struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewExtractor creates an Extractor using the wall clock for "present"
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{now: time.Now, logger: logging.OrNop(logger)}
}

// WithClock returns a copy of e that resolves "present" against now
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	c := *e
	c.now = now
	return &c
}

// Extract runs every extraction stage over text. It never fails: a stage
// that panics leaves its fields empty and the rest is still returned.
func (e *Extractor) Extract(text string) *types.ProcessedCvData {
	out := &types.ProcessedCvData{}
	text = textextract.CleanText(text)
	if text == "" {
		return out
	}

	sections := splitSections(text)
	folded := textextract.Fold(text)
	now := e.now()

	e.stage("personal", func() {
		out.Personal = extractPersonal(text, sections[SectionHeader])
	})
	e.stage("skills", func() {
		e.fillSkills(out, text, sections)
	})

	var ranges []DateRange
	e.stage("experience", func() {
		lines, ok := sections[SectionExperience]
		if !ok {
			// education dates are study, not work
			lines = linesOutside(text, SectionEducation)
		}
		out.Experience, ranges = extractExperience(lines, now)
	})
	e.stage("education", func() {
		lines, ok := sections[SectionEducation]
		if !ok {
			lines = strings.Split(text, "\n")
		}
		out.Education = extractEducation(lines, ok)
	})

	e.stage("summary", func() {
		out.Summary = summarize(sections[SectionSummary])
	})

	e.stage("professional", func() {
		years := mergedYears(ranges)
		if stated := statedYears(folded); stated > years {
			years = stated
		}
		out.TotalYearsOfExperience = years
		out.Professional.YearsOfExperience = years

		if len(out.Experience) > 0 {
			out.Professional.CurrentTitle = out.Experience[0].Title
			out.Professional.CurrentCompany = out.Experience[0].Company
		}
		best := -1
		for _, ed := range out.Education {
			if r := DegreeRank(ed.Level); r > best {
				best = r
				out.Professional.EducationLevel = ed.Level
				out.Professional.Institution = ed.Institution
				out.Professional.GraduationYear = ed.EndYear
			}
		}
	})

	return out
}

func (e *Extractor) stage(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("cv extraction stage panicked", zap.String("stage", name), zap.Any("panic", r))
		}
	}()
	fn()
}

// fillSkills merges taxonomy matches over the whole text with free-form
// items listed under a skills heading
func (e *Extractor) fillSkills(out *types.ProcessedCvData, text string, sections map[Section][]string) {
	seen := make(map[string]bool)
	add := func(name string, cat SkillCategory) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		switch cat {
		case CategoryProgramming:
			out.ProgrammingLanguages = append(out.ProgrammingLanguages, name)
		case CategoryLanguage:
			out.LanguageSkills = append(out.LanguageSkills, name)
		default:
			out.TechnicalSkills = append(out.TechnicalSkills, name)
		}
	}

	for _, m := range MatchSkills(text) {
		add(m.Name, m.Category)
	}
	for _, item := range listedSkills(sections[SectionSkills]) {
		// taxonomy skills were already found in the full text
		if len(MatchSkills(item)) > 0 {
			continue
		}
		name := item
		if strings.ToLower(item) == item {
			name = NormalizeSkillName(item)
		}
		add(name, CategoryTechnical)
	}
}

// listedSkills splits "Backend: Go, gRPC; Cloud: AWS" style lines into items
func listedSkills(lines []string) []string {
	var out []string
	for _, line := range nonEmpty(lines) {
		if n := textextract.BulletPrefixLen(line); n > 0 {
			line = line[n:]
		}
		line = skillLabel.ReplaceAllString(line, "")
		for _, item := range skillListSplit.Split(line, -1) {
			item = strings.Trim(strings.TrimSpace(item), ".()")
			if item == "" || utf8.RuneCountInString(item) > 30 || len(strings.Fields(item)) > 4 {
				continue
			}
			out = append(out, item)
		}
	}
	return out
}

func summarize(lines []string) string {
	s := strings.Join(nonEmpty(lines), " ")
	if utf8.RuneCountInString(s) <= maxSummaryRunes {
		return s
	}
	r := []rune(s)[:maxSummaryRunes]
	if i := strings.LastIndex(string(r), " "); i > 0 {
		return string(r)[:i] + "..."
	}
	return string(r) + "..."
}

// Extract runs a default Extractor over text
func Extract(text string) *types.ProcessedCvData {
	return NewExtractor(nil).Extract(text)
}

// RequiredYears returns the experience a job posting asks for, 0 if none
func RequiredYears(text string) float64 {
	return statedYears(textextract.Fold(text))
}
