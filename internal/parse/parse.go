package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateLabelRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})`)
	timeRangeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*[-–~]\s*(\d{1,2}):(\d{2})$`)
	studioRe    = regexp.MustCompile(`^(.+?)[（(]([A-Za-z0-9]{2,4})[）)]\s*$`)
	slotPairRe  = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	slotLeftRe  = regexp.MustCompile(`残り\s*(\d+)\s*席?`)
)

// programs is the known class vocabulary, matched by longest prefix
// against the class name. Anything else is OTHER.
var programs = []string{
	"BSWi", "BSBi", "BSW", "BSB", "BSL", "BB1", "BB2", "BB3", "RB", "OTH",
}

// ProgramOther is the fallback category for unrecognized class names.
const ProgramOther = "OTHER"

// DateLabel parses a schedule column header such as "7/24(木)" into a
// calendar date in loc. The source publishes month/day only, so the year
// is assumed to be now's year; a date far in the past rolls over to the
// next year. The rollover window is a heuristic and still misbehaves for
// labels straddling New Year by more than half a year.
func DateLabel(label string, now time.Time, loc *time.Location) (time.Time, error) {
	m := dateLabelRe.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return time.Time{}, fmt.Errorf("unable to parse date label: %q", label)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date label out of range: %q", label)
	}

	d := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, loc)
	if now.Sub(d) > 180*24*time.Hour {
		d = d.AddDate(1, 0, 0)
	}
	return d, nil
}

// TimeRange splits a "07:30 - 08:15" label into start and end times in
// HH:MM form.
func TimeRange(raw string) (start, end string, err error) {
	m := timeRangeRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", fmt.Errorf("unable to parse time range: %q", raw)
	}
	sh, _ := strconv.Atoi(m[1])
	eh, _ := strconv.Atoi(m[3])
	start = fmt.Sprintf("%02d:%s", sh, m[2])
	end = fmt.Sprintf("%02d:%s", eh, m[4])
	return start, end, nil
}

// StudioEntry splits a studio list label such as "銀座(GNZ)" into its
// display name and lower-cased canonical code.
func StudioEntry(raw string) (name, code string, err error) {
	m := studioRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", fmt.Errorf("unable to parse studio entry: %q", raw)
	}
	return strings.TrimSpace(m[1]), strings.ToLower(m[2]), nil
}

// Program derives the class category by longest-prefix match against the
// known vocabulary.
func Program(className string) string {
	name := strings.TrimSpace(className)
	best := ""
	for _, p := range programs {
		if strings.HasPrefix(name, p) && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return ProgramOther
	}
	return best
}

// fullMarkers are status-text fragments that mark a class as not bookable.
var fullMarkers = []string{"満席", "受付終了", "seat-disabled", "キャンセル待ち"}

// Available reports whether a raw status text means the class can still
// be booked, i.e. it is not marked full.
func Available(statusText string) bool {
	for _, marker := range fullMarkers {
		if strings.Contains(statusText, marker) {
			return false
		}
	}
	return true
}

// SeatCounts extracts remaining and total seat counts from a status text.
// Recognizes "2/20" pairs and "残りN席"; anything else yields zeros.
func SeatCounts(statusText string) (available, total int) {
	if m := slotPairRe.FindStringSubmatch(statusText); m != nil {
		available, _ = strconv.Atoi(m[1])
		total, _ = strconv.Atoi(m[2])
		return available, total
	}
	if m := slotLeftRe.FindStringSubmatch(statusText); m != nil {
		available, _ = strconv.Atoi(m[1])
		return available, 0
	}
	return 0, 0
}
