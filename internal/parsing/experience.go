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

var (
	headlineSplit = regexp.MustCompile(`(?i)\s+(?:at|@|tại|tai)\s+|\s+[-–—|]\s+|\s*[|,]\s*`)
	atSplit       = regexp.MustCompile(`(?i)\s+(?:at|@|tại|tai)\s+`)
	companyWords  = regexp.MustCompile(`\b(?:ltd|llc|inc|jsc|corp|corporation|company|co|group|bank|technologies|technology|software|solutions|cong ty|tap doan|ngan hang)\b`)
	explicitYears = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}(?:[.,]\d)?)\s*\+?\s*(?:years?|yrs?|nam)\s*(?:of\s+)?(?:professional\s+|working\s+|work\s+|industry\s+|relevant\s+|hands-on\s+)?(?:experience|exp\b|kinh nghiem)`),
		regexp.MustCompile(`(?:experience|kinh nghiem)\s*:?\s*(\d{1,2}(?:[.,]\d)?)\s*\+?\s*(?:years?|yrs?|nam)`),
	}
)

type experienceBlock struct {
	entry         types.ExperienceEntry
	span          DateRange
	desc          []string
	expectCompany bool
}

// extractExperience finds positions by their date ranges. A position is
// the range line, the headline on it or on the line just before it, and
// the lines that follow until the next range.
func extractExperience(lines []string, now time.Time) ([]types.ExperienceEntry, []DateRange) {
	var (
		blocks   []*experienceBlock
		preamble []string
	)
	for _, line := range nonEmpty(lines) {
		r, ok := findDateRange(line, now)
		if !ok {
			if len(blocks) == 0 {
				preamble = append(preamble, line)
				continue
			}
			cur := blocks[len(blocks)-1]
			if cur.expectCompany && !isBulletLine(line) && len(strings.Fields(line)) <= 8 {
				cur.entry.Company = trimHeadline(line)
				cur.expectCompany = false
				continue
			}
			cur.expectCompany = false
			cur.desc = append(cur.desc, line)
			continue
		}

		headline := trimHeadline(cutRange(line, r))
		if headline == "" {
			headline = takeHeadline(blocks, &preamble)
		}
		b := &experienceBlock{span: r}
		b.entry.Title, b.entry.Company = splitHeadline(headline)
		b.expectCompany = b.entry.Company == ""
		blocks = append(blocks, b)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if !blocks[i].span.End.Equal(blocks[j].span.End) {
			return blocks[i].span.End.After(blocks[j].span.End)
		}
		return blocks[i].span.Start.After(blocks[j].span.Start)
	})

	entries := make([]types.ExperienceEntry, 0, len(blocks))
	ranges := make([]DateRange, 0, len(blocks))
	for _, b := range blocks {
		e := b.entry
		e.StartDate = formatMonth(b.span.Start)
		if b.span.Current {
			e.EndDate = Present
		} else {
			e.EndDate = formatMonth(b.span.End)
		}
		e.Years = roundYears(float64(monthsBetween(b.span.Start, b.span.End)) / 12)
		e.Description = describe(b.desc)
		entries = append(entries, e)
		ranges = append(ranges, b.span)
	}
	return entries, ranges
}

// takeHeadline borrows the last non-bullet line before a bare date range
func takeHeadline(blocks []*experienceBlock, preamble *[]string) string {
	if len(blocks) == 0 {
		if n := len(*preamble); n > 0 && !isBulletLine((*preamble)[n-1]) {
			h := (*preamble)[n-1]
			*preamble = (*preamble)[:n-1]
			return trimHeadline(h)
		}
		return ""
	}
	prev := blocks[len(blocks)-1]
	if n := len(prev.desc); n > 0 && !isBulletLine(prev.desc[n-1]) {
		h := prev.desc[n-1]
		prev.desc = prev.desc[:n-1]
		return trimHeadline(h)
	}
	return ""
}

// splitHeadline separates "Title at Company", "Company | Title" and similar
func splitHeadline(headline string) (title, company string) {
	if headline == "" {
		return "", ""
	}
	var parts []string
	for _, p := range headlineSplit.Split(headline, -1) {
		if p = trimHeadline(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		if looksLikeCompany(parts[0]) {
			return "", parts[0]
		}
		return parts[0], ""
	}
	title, company = parts[0], parts[1]
	// "Title at Company" is never reversed
	if atSplit.MatchString(headline) {
		return title, company
	}
	if looksLikeCompany(title) && !looksLikeCompany(company) {
		title, company = company, title
	}
	return title, company
}

func looksLikeCompany(s string) bool {
	return companyWords.MatchString(textextract.Fold(s))
}

func trimHeadline(s string) string {
	return strings.Trim(strings.TrimSpace(s), " \t-–—|,:;()[]•*")
}

func describe(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if n := textextract.BulletPrefixLen(l); n > 0 {
			l = strings.TrimSpace(l[n:])
		}
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// statedYears returns the largest "N years of experience" claim in text
func statedYears(folded string) float64 {
	best := 0.0
	for _, re := range explicitYears {
		for _, m := range re.FindAllStringSubmatch(folded, -1) {
			v := parseFloat(strings.Replace(m[1], ",", ".", 1))
			if v > best && v <= 50 {
				best = v
			}
		}
	}
	return best
}

func isBulletLine(line string) bool {
	return textextract.BulletPrefixLen(strings.TrimSpace(line)) > 0
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
