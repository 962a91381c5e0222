package certificate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	toeicSectionMin = 5
	toeicSectionMax = 495
	labelWindow     = 120
)

var (
	listeningLabel = regexp.MustCompile(`(?i)\blistening\b`)
	readingLabel   = regexp.MustCompile(`(?i)\breading\b`)
	digitRun       = regexp.MustCompile(`\d+`)

	// fragments whose digits are never section scores
	idFragment = regexp.MustCompile(`(?i)\b(?:id|no|number|code|serial|reg(?:istration)?|form|seat|candidate\s+no)\b\.?\s*[:#]?\s*[a-z0-9][a-z0-9\-/]*`)
	timeOfDay  = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
)

// TOEICScores holds the section scores found; zero means not found.
type TOEICScores struct {
	Listening int
	Reading   int
}

// String formats the scores as "L:455 R:495 Total:950", or a partial form
// when only one section was found.
func (s TOEICScores) String() string {
	switch {
	case s.Listening > 0 && s.Reading > 0:
		return fmt.Sprintf("L:%d R:%d Total:%d", s.Listening, s.Reading, s.Listening+s.Reading)
	case s.Listening > 0:
		return fmt.Sprintf("L:%d", s.Listening)
	case s.Reading > 0:
		return fmt.Sprintf("R:%d", s.Reading)
	}
	return ""
}

type numberToken struct {
	start, end int
	value      int
	digits     int
}

// ExtractTOEIC finds the listening and reading section scores using, in
// order, same-line proximity to the section label, a window following the
// label, and finally the lowest two three-digit numbers in range.
func ExtractTOEIC(text string) TOEICScores {
	masked := maskFalsePositives(text)
	nums := scoreCandidates(masked)
	claimed := make(map[int]bool)

	var s TOEICScores
	for _, stage := range []func(string, []numberToken, *regexp.Regexp, map[int]bool) (numberToken, bool){
		proximityStage, windowStage,
	} {
		if s.Listening == 0 {
			if n, ok := stage(masked, nums, listeningLabel, claimed); ok {
				s.Listening = n.value
				claimed[n.start] = true
			}
		}
		if s.Reading == 0 {
			if n, ok := stage(masked, nums, readingLabel, claimed); ok {
				s.Reading = n.value
				claimed[n.start] = true
			}
		}
	}

	if s.Listening == 0 && s.Reading == 0 {
		return lowestTwoFallback(nums)
	}
	return s
}

// proximityStage picks the nearest unclaimed candidate on the label's line,
// preferring numbers after the label on ties.
func proximityStage(text string, nums []numberToken, label *regexp.Regexp, claimed map[int]bool) (numberToken, bool) {
	for _, loc := range label.FindAllStringIndex(text, -1) {
		lineStart := strings.LastIndex(text[:loc[0]], "\n") + 1
		lineEnd := len(text)
		if i := strings.Index(text[loc[1]:], "\n"); i >= 0 {
			lineEnd = loc[1] + i
		}

		best, bestDist := numberToken{}, -1
		for _, n := range nums {
			if claimed[n.start] || n.start < lineStart || n.end > lineEnd {
				continue
			}
			var dist int
			if n.start >= loc[1] {
				dist = n.start - loc[1]
			} else {
				// ties go to the number after the label
				dist = loc[0] - n.end + 1
			}
			if bestDist < 0 || dist < bestDist {
				best, bestDist = n, dist
			}
		}
		if bestDist >= 0 {
			return best, true
		}
	}
	return numberToken{}, false
}

// windowStage takes the first unclaimed candidate within labelWindow bytes
// after a label, trying the last label occurrence first so that a title
// such as "Listening and Reading Test" does not shadow the score table.
func windowStage(text string, nums []numberToken, label *regexp.Regexp, claimed map[int]bool) (numberToken, bool) {
	locs := label.FindAllStringIndex(text, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		from, to := locs[i][1], locs[i][1]+labelWindow
		for _, n := range nums {
			if claimed[n.start] || n.start < from || n.start >= to {
				continue
			}
			return n, true
		}
	}
	return numberToken{}, false
}

func lowestTwoFallback(nums []numberToken) TOEICScores {
	var three []numberToken
	for _, n := range nums {
		if n.digits == 3 {
			three = append(three, n)
		}
	}
	if len(three) == 0 {
		return TOEICScores{}
	}
	sort.SliceStable(three, func(i, j int) bool { return three[i].value < three[j].value })
	if len(three) == 1 {
		return TOEICScores{Listening: three[0].value}
	}
	a, b := three[0], three[1]
	if b.start < a.start {
		a, b = b, a
	}
	return TOEICScores{Listening: a.value, Reading: b.value}
}

// scoreCandidates returns 1-3 digit numbers in the section range that are
// not part of a decimal, a thousands group or a longer code.
func scoreCandidates(text string) []numberToken {
	var out []numberToken
	for _, loc := range digitRun.FindAllStringIndex(text, -1) {
		digits := loc[1] - loc[0]
		if digits > 3 {
			continue
		}
		if joinedToNumber(text, loc[0], loc[1]) {
			continue
		}
		v, err := strconv.Atoi(text[loc[0]:loc[1]])
		if err != nil || v < toeicSectionMin || v > toeicSectionMax {
			continue
		}
		out = append(out, numberToken{start: loc[0], end: loc[1], value: v, digits: digits})
	}
	return out
}

// joinedToNumber reports whether the digits at [start,end) touch another
// digit group through a separator ("4.5", "1,250", "12-345") or a letter
// ("A123", "123B").
func joinedToNumber(text string, start, end int) bool {
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }
	isLetter := func(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
	isSep := func(b byte) bool { return b == '.' || b == ',' || b == '-' || b == '/' || b == ':' }

	if start > 0 {
		p := text[start-1]
		if isLetter(p) {
			return true
		}
		if isSep(p) && start > 1 && isDigit(text[start-2]) {
			return true
		}
	}
	if end < len(text) {
		n := text[end]
		if isLetter(n) {
			return true
		}
		if isSep(n) && end+1 < len(text) && isDigit(text[end+1]) {
			return true
		}
	}
	return false
}

// maskFalsePositives blanks dates, clock times and ID fragments while
// keeping byte offsets stable.
func maskFalsePositives(text string) string {
	b := []byte(text)
	for _, re := range []*regexp.Regexp{numericDate, isoDate, dayMonthName, monthNameDay, idFragment, timeOfDay} {
		for _, loc := range re.FindAllIndex(b, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				if b[i] != '\n' {
					b[i] = ' '
				}
			}
		}
	}
	return string(b)
}
