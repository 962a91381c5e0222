package certificate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonathan/resume-screener/internal/textextract"
)

const (
	minNameLen = 4
	maxNameLen = 50
)

var (
	nameLabel = regexp.MustCompile(`(?i)(?:\bfull\s+name|\bcandidate(?:'s)?\s+name|\bexaminee\s+name|\bname|\bh[oọ]\s+(?:v[aà]\s+)?t[eê]n|\bawarded\s+to|\bpresented\s+to|\bgranted\s+to|\bc[aấ]p\s+cho|\bcertif(?:y|ies)\s+that)\s*[:\-]?\s*([^\n]{2,80})`)
	honorific = regexp.MustCompile(`\b(?:Mr|Ms|Mrs|Miss|Dr|Ông|Bà|Anh|Chị)\.?\s+(\p{Lu}\p{L}+(?:\s+\p{Lu}\p{L}+){1,4})`)
	nameLine  = regexp.MustCompile(`^\s*(\p{Lu}\p{L}*(?:[ \t]+\p{Lu}\p{L}*){1,4})\s*$`)
	lettersSp = regexp.MustCompile(`^[\p{L} ]+$`)
)

// excludedNameWords are folded words that never appear in a person's name
// on a certificate.
var excludedNameWords = map[string]bool{
	"certificate": true, "certification": true, "certified": true, "of": true, "achievement": true,
	"completion": true, "appreciation": true, "excellence": true, "toeic": true, "ielts": true,
	"toefl": true, "listening": true, "reading": true, "writing": true, "speaking": true,
	"score": true, "scores": true, "total": true, "university": true, "college": true,
	"institute": true, "academy": true, "school": true, "english": true, "test": true,
	"band": true, "overall": true, "date": true, "issue": true, "issued": true, "valid": true,
	"until": true, "name": true, "aws": true, "amazon": true, "microsoft": true, "google": true,
	"cloud": true, "oracle": true, "cisco": true, "coursera": true, "udemy": true, "the": true,
	"and": true, "this": true, "that": true, "certify": true, "awarded": true, "presented": true,
	"bachelor": true, "master": true, "doctor": true, "degree": true, "diploma": true,
	"program": true, "course": true, "professional": true, "associate": true, "solutions": true,
	"architect": true, "developer": true, "educational": true, "testing": true, "service": true,
	"services": true, "ets": true, "iig": true, "viet": true, "vietnam": true, "official": true,
	"report": true, "result": true, "results": true, "candidate": true, "signature": true,
	"director": true, "president": true, "web": true, "engineer": true, "specialist": true,
	"has": true, "for": true, "in": true, "with": true, "to": true, "by": true, "on": true,
	"credential": true, "verification": true, "expiry": true, "expires": true,
}

// excludedNamePhrases reject Vietnamese header lines whose single words can
// also be given names ("Hoa", "Nam").
var excludedNamePhrases = []string{
	"cong hoa", "doc lap", "chung chi", "chung nhan", "dai hoc", "truong", "bang tot nghiep",
	"hieu truong", "giam doc", "ho va ten", "ho ten", "ngay sinh", "noi sinh", "xep loai",
}

var titleCaser = cases.Title(language.Und)

// ExtractName tries, in order: text after a name label, an honorific
// followed by capitalized words, then any line made only of 2-5
// capitalized words.
func ExtractName(text string) string {
	for _, m := range nameLabel.FindAllStringSubmatch(text, -1) {
		if name, ok := acceptName(leadingNameWords(m[1])); ok {
			return name
		}
	}
	for _, m := range honorific.FindAllStringSubmatch(text, -1) {
		if name, ok := acceptName(m[1]); ok {
			return name
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if m := nameLine.FindStringSubmatch(line); m != nil {
			if name, ok := acceptName(m[1]); ok {
				return name
			}
		}
	}
	return ""
}

// leadingNameWords keeps the run of capitalized words at the start of s,
// stopping at the first word that is not ("NGUYEN VAN AN has completed").
func leadingNameWords(s string) string {
	var words []string
	for _, w := range strings.Fields(s) {
		trimmed := strings.TrimRight(w, ".,;:")
		r, _ := utf8.DecodeRuneInString(trimmed)
		if trimmed == "" || !unicode.IsUpper(r) || !isLetters(trimmed) {
			break
		}
		words = append(words, trimmed)
		if trimmed != w {
			break
		}
		if len(words) == 5 {
			break
		}
	}
	return strings.Join(words, " ")
}

func isLetters(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func acceptName(candidate string) (string, bool) {
	name := strings.Join(strings.Fields(candidate), " ")
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen || !lettersSp.MatchString(name) {
		return "", false
	}
	if len(strings.Fields(name)) < 2 {
		return "", false
	}
	folded := textextract.Fold(name)
	for _, w := range strings.Fields(folded) {
		if excludedNameWords[w] {
			return "", false
		}
	}
	for _, p := range excludedNamePhrases {
		if strings.Contains(folded, p) {
			return "", false
		}
	}
	if strings.ToUpper(name) == name {
		name = titleCaser.String(strings.ToLower(name))
	}
	return name, true
}
