package textextract

import (
	"regexp"
	"strings"
)

var (
	multiSpace  = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines  = regexp.MustCompile(`\n\n\n+`)
	controlRune = regexp.MustCompile(`[\x00-\x08\x0b\x0e-\x1f\x7f]`)
)

// CleanText normalizes extracted text while keeping line structure:
// LF line endings, single spaces inside lines, at most one blank line
// between paragraphs.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = controlRune.ReplaceAllString(content, "")

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, cleanLine(line))
	}

	result := strings.Join(cleaned, "\n")
	result = blankLines.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	if n := BulletPrefixLen(trimmed); n > 0 {
		// normalize the many bullet glyphs PDFs and Word produce
		trimmed = "- " + strings.TrimSpace(trimmed[n:])
	}
	return multiSpace.ReplaceAllString(trimmed, " ")
}

var bullets = []string{"- ", "* ", "• ", "· ", "▪ ", "◦ ", "● "}

// BulletPrefixLen returns the byte length of a leading bullet glyph and its
// space, or 0 when line is not a bullet item.
func BulletPrefixLen(line string) int {
	for _, b := range bullets {
		if strings.HasPrefix(line, b) {
			return len(b)
		}
	}
	return 0
}
