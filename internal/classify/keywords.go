package classify

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jonathan/resume-screener/internal/textextract"
)

// Filename keywords, already folded (lowercase, no diacritics).
// Keywords of six or more characters also match inside longer tokens
// ("myresume", "awscertificate"); shorter ones must be whole tokens.
var (
	resumeFilenameKeywords = []string{
		"cv", "resume", "curriculum", "vitae", "profile",
		"ho so", "hoso", "ly lich", "lylich", "so yeu", "xin viec", "ung tuyen",
	}
	certificateFilenameKeywords = []string{
		"certificate", "certification", "cert", "certs", "diploma", "degree",
		"transcript", "award", "toeic", "ielts", "toefl", "aws", "azure", "gcp",
		"ccna", "ocp", "coursera", "udemy",
		"chung chi", "chungchi", "chung nhan", "chungnhan", "bang", "bang cap",
		"van bang", "bang tot nghiep", "giay chung nhan",
	}
)

// Content indicators, folded. Each distinct hit adds one point.
var (
	resumeContentIndicators = []string{
		"work experience", "experience", "employment history", "education",
		"skills", "objective", "career objective", "summary", "projects",
		"references", "linkedin", "github", "curriculum vitae", "resume",
		"responsibilities", "achievements",
		"kinh nghiem", "kinh nghiem lam viec", "hoc van", "ky nang", "muc tieu",
		"muc tieu nghe nghiep", "du an", "thong tin ca nhan", "so dien thoai",
		"dia chi", "so thich",
	}
	certificateContentIndicators = []string{
		"certificate", "certify", "certifies", "certified", "hereby", "awarded",
		"has successfully completed", "successfully completed", "completion",
		"issued", "issue date", "date of issue", "valid until", "valid through",
		"expiry", "expiration", "expires", "credential id", "verification",
		"score", "band", "total score", "toeic", "ielts", "toefl",
		"chung nhan", "chung chi", "cap ngay", "ngay cap", "hieu luc",
		"diem", "tot nghiep", "xep loai",
	}
)

var (
	emailPattern = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d[\d\s.\-()]{8,}\d)`)
	tokenSplit   = regexp.MustCompile(`[^a-z0-9]+`)
)

// normalizeFilename folds the base name without extension into
// space-separated tokens padded with spaces.
func normalizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	folded := textextract.Fold(base)
	return " " + strings.TrimSpace(tokenSplit.ReplaceAllString(folded, " ")) + " "
}

func matchesAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, " "+kw+" ") {
			return true
		}
		if len(kw) >= 6 && !strings.Contains(kw, " ") && strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// FilenameSignals reports which keyword sets the filename matches.
func FilenameSignals(filename string) (resume, certificate bool) {
	n := normalizeFilename(filename)
	return matchesAny(n, resumeFilenameKeywords), matchesAny(n, certificateFilenameKeywords)
}

// countIndicators counts distinct indicators present in folded text.
func countIndicators(folded string, indicators []string) int {
	hits := 0
	for _, ind := range indicators {
		if strings.Contains(folded, ind) {
			hits++
		}
	}
	return hits
}
