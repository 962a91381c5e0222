package certificate

import (
	"regexp"
	"strings"

	"github.com/jonathan/resume-screener/internal/types"
)

type scorePattern struct {
	name   string
	re     *regexp.Regexp
	format func(m []string) string
	folded bool // match against folded text
}

var (
	numericScore = scorePattern{
		name: "numeric",
		re:   regexp.MustCompile(`(?i)\b(?:total\s+|overall\s+)?score\s*[:\-]?\s*(\d{1,3}(?:\.\d{1,2})?)(\s*/\s*\d{1,3})?`),
		format: func(m []string) string {
			if m[2] != "" {
				return m[1] + "/" + strings.TrimLeft(strings.TrimSpace(m[2]), "/ ")
			}
			return m[1]
		},
	}
	fractionScore = scorePattern{
		name:   "fraction",
		re:     regexp.MustCompile(`\b(\d{1,3}(?:\.\d)?)\s*/\s*(990|677|120|100|10|9)\b`),
		format: func(m []string) string { return m[1] + "/" + m[2] },
	}
	bandScore = scorePattern{
		name:   "band",
		re:     regexp.MustCompile(`(?i)\b(?:overall\s+band(?:\s+score)?|overall|band(?:\s+score)?)\s*[:\-]?\s*([1-9](?:\.[05])?)\b`),
		format: func(m []string) string { return "Band " + m[1] },
	}
	letterGrade = scorePattern{
		name:   "grade",
		re:     regexp.MustCompile(`(?i)\bgrade\s*[:\-]?\s*([a-f][+\-]?)(?:[\s.,;)]|$)`),
		format: func(m []string) string { return "Grade " + strings.ToUpper(m[1]) },
	}
	classificationGrade = scorePattern{
		name: "classification",
		re: regexp.MustCompile(`\b(?:xep loai|classification|with)\s*[:\-]?\s*` +
			`(high distinction|distinction|merit|excellent|very good|good|pass|xuat sac|gioi|trung binh kha|kha|trung binh)\b`),
		format: func(m []string) string { return m[1] },
		folded: true,
	}

	generalScorePatterns = []scorePattern{numericScore, fractionScore, bandScore, letterGrade, classificationGrade}
	ieltsScorePatterns   = []scorePattern{bandScore, numericScore, fractionScore}
)

// ExtractScore returns the score string for a certificate of type t.
func ExtractScore(text, folded string, t types.CertificateType) string {
	if t == types.CertTOEIC {
		if s := ExtractTOEIC(text).String(); s != "" {
			return s
		}
	}
	patterns := generalScorePatterns
	if t == types.CertIELTS {
		patterns = ieltsScorePatterns
	}
	for _, p := range patterns {
		src := text
		if p.folded {
			src = folded
		}
		if m := p.re.FindStringSubmatch(src); m != nil {
			return p.format(m)
		}
	}
	return ""
}
