package parsing

import (
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-screener/internal/textextract"
)

// Section names a résumé block
type Section string

const (
	SectionHeader         Section = "header" // text before the first heading
	SectionSummary        Section = "summary"
	SectionExperience     Section = "experience"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
	SectionLanguages      Section = "languages"
	SectionCertifications Section = "certifications"
	SectionProjects       Section = "projects"
	SectionPersonal       Section = "personal"
	SectionOther          Section = "other"
)

// headings are folded; a line is a heading when, stripped of bullets and
// a trailing colon, it equals one of them
var headings = map[string]Section{
	"summary": SectionSummary, "professional summary": SectionSummary, "profile": SectionSummary,
	"about me": SectionSummary, "objective": SectionSummary, "career objective": SectionSummary,
	"muc tieu": SectionSummary, "muc tieu nghe nghiep": SectionSummary, "gioi thieu": SectionSummary,
	"gioi thieu ban than": SectionSummary, "tom tat": SectionSummary,

	"experience": SectionExperience, "work experience": SectionExperience,
	"professional experience": SectionExperience, "employment history": SectionExperience,
	"work history": SectionExperience, "employment": SectionExperience,
	"kinh nghiem": SectionExperience, "kinh nghiem lam viec": SectionExperience,
	"qua trinh cong tac": SectionExperience,

	"education": SectionEducation, "academic background": SectionEducation,
	"education and training": SectionEducation, "hoc van": SectionEducation,
	"trinh do hoc van": SectionEducation, "qua trinh hoc tap": SectionEducation,

	"skills": SectionSkills, "technical skills": SectionSkills, "core competencies": SectionSkills,
	"technologies": SectionSkills, "skills and abilities": SectionSkills,
	"ky nang": SectionSkills, "ky nang chuyen mon": SectionSkills,

	"languages": SectionLanguages, "language skills": SectionLanguages, "ngoai ngu": SectionLanguages,

	"certifications": SectionCertifications, "certificates": SectionCertifications,
	"licenses and certifications": SectionCertifications, "chung chi": SectionCertifications,

	"projects": SectionProjects, "personal projects": SectionProjects, "du an": SectionProjects,

	"personal information": SectionPersonal, "personal details": SectionPersonal,
	"contact": SectionPersonal, "contact information": SectionPersonal,
	"thong tin ca nhan": SectionPersonal, "lien he": SectionPersonal,

	"interests": SectionOther, "hobbies": SectionOther, "references": SectionOther,
	"so thich": SectionOther, "awards": SectionOther, "activities": SectionOther,
}

// headingOf returns the section a line opens, if it is a heading
func headingOf(line string) (Section, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > 40 {
		return "", false
	}
	trimmed = strings.TrimLeft(trimmed, "-#*• ")
	trimmed = strings.TrimRight(trimmed, ": ")
	key := strings.Join(strings.Fields(textextract.Fold(trimmed)), " ")
	key = strings.ReplaceAll(key, "&", "and")
	s, ok := headings[key]
	return s, ok
}

// splitSections groups lines under the heading that precedes them.
// Repeated headings append to the same section.
func splitSections(text string) map[Section][]string {
	out := make(map[Section][]string)
	current := SectionHeader
	for _, line := range strings.Split(text, "\n") {
		if s, ok := headingOf(line); ok {
			current = s
			continue
		}
		out[current] = append(out[current], line)
	}
	return out
}

// linesOutside returns the lines of text that are not under the skip
// heading, headings included
func linesOutside(text string, skip Section) []string {
	var out []string
	current := SectionHeader
	for _, line := range strings.Split(text, "\n") {
		if s, ok := headingOf(line); ok {
			current = s
		}
		if current != skip {
			out = append(out, line)
		}
	}
	return out
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}
