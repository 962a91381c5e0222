package certificate

import (
	"regexp"
	"strings"

	"github.com/jonathan/resume-screener/internal/types"
)

type typeRule struct {
	Type     types.CertificateType
	Keywords []string // folded
	re       *regexp.Regexp
}

// typeTable is ordered; the first category with a keyword hit wins.
var typeTable = compileTypeTable([]typeRule{
	{Type: types.CertTOEIC, Keywords: []string{"toeic", "test of english for international communication"}},
	{Type: types.CertIELTS, Keywords: []string{"ielts", "international english language testing system"}},
	{Type: types.CertTOEFL, Keywords: []string{"toefl", "test of english as a foreign language"}},
	{Type: types.CertAWS, Keywords: []string{"aws", "amazon web services", "aws certified"}},
	{Type: types.CertAzure, Keywords: []string{"azure", "microsoft certified"}},
	{Type: types.CertGoogleCloud, Keywords: []string{"google cloud", "gcp", "google cloud certified"}},
	{Type: types.CertCisco, Keywords: []string{"cisco", "ccna", "ccnp", "ccie"}},
	{Type: types.CertOracle, Keywords: []string{"oracle certified", "oracle", "ocp", "ocjp"}},
	{Type: types.CertUniversityDegree, Keywords: []string{
		"bachelor", "master of", "doctor of philosophy", "diploma", "university", "degree of",
		"dai hoc", "bang tot nghiep", "cu nhan", "thac si", "tien si", "ky su",
	}},
	{Type: types.CertMOOC, Keywords: []string{
		"coursera", "udemy", "edx", "udacity", "linkedin learning", "course certificate",
		"certificate of completion", "khoa hoc",
	}},
})

func compileTypeTable(rules []typeRule) []typeRule {
	for i := range rules {
		quoted := make([]string, len(rules[i].Keywords))
		for j, kw := range rules[i].Keywords {
			quoted[j] = regexp.QuoteMeta(kw)
		}
		rules[i].re = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return rules
}

// DetectType returns the first category whose keywords occur in text.
func DetectType(foldedText string) types.CertificateType {
	for _, rule := range typeTable {
		if rule.re.MatchString(foldedText) {
			return rule.Type
		}
	}
	return types.CertUnknown
}

func typeKeywordIn(folded string, t types.CertificateType) bool {
	for _, rule := range typeTable {
		if rule.Type == t {
			return rule.re.MatchString(folded)
		}
	}
	return false
}
