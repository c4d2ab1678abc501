package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/alexanderramin/cadence/internal/calendar"
)

var isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// offsetPattern matches compact offsets from today: +3d, -1w, 2m, +1y.
var offsetPattern = regexp.MustCompile(`^([+-]?)(\d+)([dwmy])$`)

var naturalDates = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDateArg reads a date argument relative to today. Accepted forms, in
// order: YYYY-MM-DD, YYYYMMDD, a compact offset, then English phrases such
// as "tomorrow" or "next friday".
func parseDateArg(s string, today calendar.Date) (calendar.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return calendar.Date{}, fmt.Errorf("date is required")
	}
	if isoPattern.MatchString(s) {
		return calendar.Parse(s)
	}
	if len(s) == 8 {
		if d, err := calendar.ParseCompact(s); err == nil {
			return d, nil
		}
	}
	if m := offsetPattern.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return calendar.Date{}, fmt.Errorf("invalid offset %q", s)
		}
		if m[1] == "-" {
			n = -n
		}
		switch m[3] {
		case "d":
			return today.AddDays(n), nil
		case "w":
			return today.AddWeeks(n), nil
		case "m":
			return today.AddMonthsClamped(n), nil
		default:
			return today.AddYearsClamped(n), nil
		}
	}

	// Noon keeps day arithmetic in the phrase parser away from midnight.
	base := today.Time().Add(12 * time.Hour)
	r, err := naturalDates.Parse(s, base)
	if err != nil || r == nil {
		return calendar.Date{}, fmt.Errorf("unrecognized date %q (use YYYY-MM-DD, +2w or a phrase like \"next monday\")", s)
	}
	return calendar.FromTime(r.Time), nil
}

// optionalDate parses s when it is non-empty and returns the zero Date
// otherwise.
func optionalDate(s string, today calendar.Date) (calendar.Date, error) {
	if strings.TrimSpace(s) == "" {
		return calendar.Date{}, nil
	}
	return parseDateArg(s, today)
}

// rangeFlags resolves --from/--to with defaults relative to today.
func rangeFlags(from, to string, today calendar.Date, defaultSpan int) (calendar.Range, error) {
	start, end := today, today.AddDays(defaultSpan)
	var err error
	if from != "" {
		if start, err = parseDateArg(from, today); err != nil {
			return calendar.Range{}, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if end, err = parseDateArg(to, today); err != nil {
			return calendar.Range{}, fmt.Errorf("--to: %w", err)
		}
	} else if from != "" {
		end = start.AddDays(defaultSpan)
	}
	r := calendar.NewRange(start, end)
	if !r.Valid() {
		return calendar.Range{}, fmt.Errorf("--from %s is after --to %s", start, end)
	}
	return r, nil
}
