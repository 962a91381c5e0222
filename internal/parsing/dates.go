package parsing

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"

	"github.com/jonathan/resume-screener/internal/textextract"
)

// Present is the EndDate value of a current position
const Present = "present"

const monthLayout = "2006-01"

const monthName = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*`

var (
	dateToken = `(?:(?:t|thang)\s*\d{1,2}\s*[/.\-]\s*\d{4}` + // Vietnamese "T3/2020", "tháng 3/2020"
		`|` + monthName + `\.?\s*,?\s*\d{4}` + // "Jan 2020", "September, 2019"
		`|\d{1,2}\s*[/.\-]\s*\d{4}` + // "03/2020"
		`|\d{4}\s*[/.\-]\s*\d{1,2}(?:\s*[/.\-]\s*\d{1,2})?` + // "2020-03"
		`|\d{4})`
	presentToken = `(?:present|current|now|today|nay|hien tai|hien nay)`

	// matched against folded text; folding keeps byte offsets for ASCII
	dateRange = regexp.MustCompile(`\b(` + dateToken + `)\s*(?:-|–|—|~|to|until|den|→)\s*(` + dateToken + `|` + presentToken + `)\b`)

	vnMonthYear  = regexp.MustCompile(`^(?:t|thang)\s*(\d{1,2})\s*[/.\-]\s*(\d{4})$`)
	monthYear    = regexp.MustCompile(`^(\d{1,2})\s*[/.\-]\s*(\d{4})$`)
	yearMonth    = regexp.MustCompile(`^(\d{4})\s*[/.\-]\s*(\d{1,2})(?:\s*[/.\-]\s*\d{1,2})?$`)
	yearOnly     = regexp.MustCompile(`^\d{4}$`)
	namedMonth   = regexp.MustCompile(`^(` + monthName + `)\.?\s*,?\s*(\d{4})$`)
	presentWords = regexp.MustCompile(`^` + presentToken + `$`)
)

// DateRange is a parsed employment or study period
type DateRange struct {
	Start   time.Time
	End     time.Time
	Current bool
	// rune offsets of the match in the line
	From, To int
}

// findDateRange returns the first date range on a line
func findDateRange(line string, now time.Time) (DateRange, bool) {
	folded := textextract.Fold(line)
	for _, m := range dateRange.FindAllStringSubmatchIndex(folded, -1) {
		start, ok := parseMonth(folded[m[2]:m[3]])
		if !ok {
			continue
		}
		endText := folded[m[4]:m[5]]
		r := DateRange{
			Start: start,
			From:  utf8.RuneCountInString(folded[:m[0]]),
			To:    utf8.RuneCountInString(folded[:m[1]]),
		}
		if presentWords.MatchString(endText) {
			r.End, r.Current = monthStart(now), true
		} else {
			end, ok := parseMonth(endText)
			if !ok || end.Before(start) {
				continue
			}
			r.End = end
		}
		return r, true
	}
	return DateRange{}, false
}

// parseMonth parses a folded month token to the first day of that month.
// Month names go through dateparse so abbreviations and full names in any
// casing are handled.
func parseMonth(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	switch {
	case vnMonthYear.MatchString(token):
		m := vnMonthYear.FindStringSubmatch(token)
		return makeMonth(m[2], m[1])
	case monthYear.MatchString(token):
		m := monthYear.FindStringSubmatch(token)
		return makeMonth(m[2], m[1])
	case yearMonth.MatchString(token):
		m := yearMonth.FindStringSubmatch(token)
		return makeMonth(m[1], m[2])
	case yearOnly.MatchString(token):
		return makeMonth(token, "1")
	case namedMonth.MatchString(token):
		m := namedMonth.FindStringSubmatch(token)
		t, err := dateparse.ParseAny(m[1][:3] + " 1, " + m[2])
		if err != nil {
			return time.Time{}, false
		}
		return monthStart(t), true
	}
	return time.Time{}, false
}

func makeMonth(year, month string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || y < 1950 || y > 2100 {
		return time.Time{}, false
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC), true
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthsBetween counts whole months from start to end
func monthsBetween(start, end time.Time) int {
	n := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if n < 0 {
		return 0
	}
	return n
}

// mergedYears sums the months covered by the ranges, counting overlaps once
func mergedYears(ranges []DateRange) float64 {
	if len(ranges) == 0 {
		return 0
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b DateRange) int { return a.Start.Compare(b.Start) })

	months := 0
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if !r.Start.After(cur.End) {
			if r.End.After(cur.End) {
				cur.End = r.End
			}
			continue
		}
		months += monthsBetween(cur.Start, cur.End)
		cur = r
	}
	months += monthsBetween(cur.Start, cur.End)
	return roundYears(float64(months) / 12)
}

func roundYears(y float64) float64 {
	return float64(int(y*10+0.5)) / 10
}

// cutRange removes the matched range from line. Folding maps runes one to
// one for precomposed text; otherwise the line is returned whole.
func cutRange(line string, r DateRange) string {
	runes := []rune(line)
	if utf8.RuneCountInString(textextract.Fold(line)) != len(runes) || r.To > len(runes) {
		return line
	}
	return string(runes[:r.From]) + " " + string(runes[r.To:])
}

func formatMonth(t time.Time) string {
	return t.Format(monthLayout)
}
