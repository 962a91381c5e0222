package certificate

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const monthAlt = `(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*`

var (
	numericDate  = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-]((?:19|20)\d{2})\b`)
	isoDate      = regexp.MustCompile(`\b((?:19|20)\d{2})[/.\-](\d{1,2})[/.\-](\d{1,2})\b`)
	dayMonthName = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthAlt + `\.?,?\s+((?:19|20)\d{2})\b`)
	monthNameDay = regexp.MustCompile(`(?i)\b` + monthAlt + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+((?:19|20)\d{2})\b`)
	// folded Vietnamese: "ngày 12 tháng 3 năm 2023"
	vietnameseDate = regexp.MustCompile(`ngay\s+(\d{1,2})\s+thang\s+(\d{1,2})\s+nam\s+((?:19|20)\d{2})`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

type dateMatch struct {
	start, end int
	date       time.Time
}

// ExtractDates returns every recognizable date in folded text, in order of
// appearance, formatted as YYYY-MM-DD. Numeric dates are read day first
// unless that is impossible.
func ExtractDates(folded string) []string {
	var matches []dateMatch
	add := func(loc []int, d time.Time, ok bool) {
		if ok {
			matches = append(matches, dateMatch{start: loc[0], end: loc[1], date: d})
		}
	}

	for _, m := range numericDate.FindAllStringSubmatchIndex(folded, -1) {
		a, b, y := atoi(folded, m, 1), atoi(folded, m, 2), atoi(folded, m, 3)
		d, ok := dayFirst(a, b, y)
		add(m, d, ok)
	}
	for _, m := range isoDate.FindAllStringSubmatchIndex(folded, -1) {
		d, ok := makeDate(atoi(folded, m, 1), time.Month(atoi(folded, m, 2)), atoi(folded, m, 3))
		add(m, d, ok)
	}
	for _, m := range dayMonthName.FindAllStringSubmatchIndex(folded, -1) {
		mon := monthIndex[strings.ToLower(folded[m[4]:m[5]])]
		d, ok := makeDate(atoi(folded, m, 3), mon, atoi(folded, m, 1))
		add(m, d, ok)
	}
	for _, m := range monthNameDay.FindAllStringSubmatchIndex(folded, -1) {
		mon := monthIndex[strings.ToLower(folded[m[2]:m[3]])]
		d, ok := makeDate(atoi(folded, m, 3), mon, atoi(folded, m, 2))
		add(m, d, ok)
	}
	for _, m := range vietnameseDate.FindAllStringSubmatchIndex(folded, -1) {
		d, ok := makeDate(atoi(folded, m, 3), time.Month(atoi(folded, m, 2)), atoi(folded, m, 1))
		add(m, d, ok)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	var out []string
	lastEnd := -1
	for _, m := range matches {
		if m.start < lastEnd {
			continue
		}
		out = append(out, m.date.Format("2006-01-02"))
		lastEnd = m.end
	}
	return out
}

func atoi(s string, m []int, group int) int {
	if m[2*group] < 0 {
		return 0
	}
	v, _ := strconv.Atoi(s[m[2*group]:m[2*group+1]])
	return v
}

func dayFirst(a, b, year int) (time.Time, bool) {
	if d, ok := makeDate(year, time.Month(b), a); ok {
		return d, true
	}
	return makeDate(year, time.Month(a), b)
}

func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}
