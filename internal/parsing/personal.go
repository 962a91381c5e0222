package parsing

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

var (
	emailRe      = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe      = regexp.MustCompile(`\+?\(?\d[\d \t.\-()]{7,}\d`)
	nameLabelRe  = regexp.MustCompile(`(?im)^\s*(?:full\s*name|name|họ\s*(?:và\s*)?tên|ho\s*(?:va\s*)?ten)\s*[:\-]\s*(.+)$`)
	addressLabel = regexp.MustCompile(`(?im)^\s*(?:address|địa chỉ|dia chi)\s*[:\-]\s*(.+)$`)
)

// words that rule out a line being the candidate's name
var notNameWords = map[string]bool{
	"curriculum": true, "vitae": true, "resume": true, "cv": true, "profile": true,
	"developer": true, "engineer": true, "manager": true, "intern": true, "designer": true,
	"analyst": true, "specialist": true, "consultant": true, "senior": true, "junior": true,
	"ho so": true, "so yeu": true, "ly lich": true, "thong tin": true,
}

func extractPersonal(text string, header []string) types.PersonalInfo {
	var p types.PersonalInfo
	if m := emailRe.FindString(text); m != "" {
		p.Email = strings.ToLower(m)
	}
	p.Phone = findPhone(text)
	if m := addressLabel.FindStringSubmatch(text); m != nil {
		p.Address = strings.TrimSpace(m[1])
	}

	if m := nameLabelRe.FindStringSubmatch(text); m != nil {
		if name, ok := acceptPersonName(m[1]); ok {
			p.Name = name
		}
	}
	if p.Name == "" {
		for i, line := range nonEmpty(header) {
			if i >= 6 {
				break
			}
			if name, ok := acceptPersonName(line); ok {
				p.Name = name
				break
			}
		}
	}
	return p
}

func findPhone(text string) string {
	for _, m := range phoneRe.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		// date ranges like "2018 - 2020" have eight digits
		if digits >= 9 && digits <= 15 && !dateRange.MatchString(m) {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func acceptPersonName(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	n := utf8.RuneCountInString(s)
	if n < 4 || n > 50 {
		return "", false
	}
	if _, isHeading := headingOf(s); isHeading {
		return "", false
	}
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 5 {
		return "", false
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) {
			return "", false
		}
		for _, c := range w {
			if !unicode.IsLetter(c) {
				return "", false
			}
		}
	}
	folded := textextract.Fold(s)
	for w := range notNameWords {
		if strings.Contains(" "+folded+" ", " "+w+" ") {
			return "", false
		}
	}
	if strings.ToUpper(s) == s {
		s = titleCaser.String(strings.ToLower(s))
	}
	return s, true
}
