// Package rrule maps recurrence rules to and from their canonical RFC 5545
// text form. The canonical string is what gets persisted, so the encoding is
// deterministic: the same rule always produces the same bytes.
package rrule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

const (
	dtstartPrefix = "DTSTART;VALUE=DATE:"
	rrulePrefix   = "RRULE:"
)

var freqTokens = map[domain.Frequency]string{
	domain.FreqDaily:   "DAILY",
	domain.FreqWeekly:  "WEEKLY",
	domain.FreqMonthly: "MONTHLY",
	domain.FreqYearly:  "YEARLY",
}

var weekdayByCode = map[string]time.Weekday{
	"MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday, "TH": time.Thursday,
	"FR": time.Friday, "SA": time.Saturday, "SU": time.Sunday,
}

// Encode returns the two-line canonical form:
//
//	DTSTART;VALUE=DATE:20230501
//	RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR
func Encode(r domain.RecurrenceRule) string {
	return dtstartPrefix + r.Anchor.Compact() + "\n" + rrulePrefix + EncodeValue(r)
}

// EncodeValue returns only the RRULE value. Field order is FREQ, INTERVAL
// (omitted when 1), BYDAY, BYMONTHDAY, COUNT or UNTIL, then extensions.
func EncodeValue(r domain.RecurrenceRule) string {
	parts := []string{"FREQ=" + freqTokens[r.Frequency]}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if !r.Weekdays.Empty() {
		days := r.Weekdays.Days()
		codes := make([]string, len(days))
		for i, d := range days {
			codes[i] = calendar.WeekdayCode(d)
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if r.MonthDay != 0 {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(r.MonthDay))
	}
	if n, ok := r.Bound.Count(); ok {
		parts = append(parts, "COUNT="+strconv.Itoa(n))
	}
	if until, ok := r.Bound.Until(); ok {
		parts = append(parts, "UNTIL="+until.Compact())
	}
	parts = append(parts, r.Extensions...)
	return strings.Join(parts, ";")
}

// Decode parses the full form produced by Encode. Lines may be separated by
// LF or CRLF and appear in any order. Errors match domain.ErrMalformedRule.
func Decode(text string) (domain.RecurrenceRule, error) {
	var (
		anchor   calendar.Date
		value    string
		sawStart bool
		sawRule  bool
	)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			return domain.RecurrenceRule{}, malformed("line %q has no property value", line)
		}
		prop, params, _ := strings.Cut(name, ";")
		switch strings.ToUpper(prop) {
		case "DTSTART":
			if sawStart {
				return domain.RecurrenceRule{}, malformed("duplicate DTSTART")
			}
			if params != "" && !strings.EqualFold(params, "VALUE=DATE") && !strings.HasPrefix(strings.ToUpper(params), "TZID=") {
				return domain.RecurrenceRule{}, malformed("unsupported DTSTART parameters %q", params)
			}
			d, err := parseDateValue(rest)
			if err != nil {
				return domain.RecurrenceRule{}, malformed("DTSTART: %v", err)
			}
			anchor, sawStart = d, true
		case "RRULE":
			if sawRule {
				return domain.RecurrenceRule{}, malformed("duplicate RRULE")
			}
			value, sawRule = rest, true
		default:
			return domain.RecurrenceRule{}, malformed("unexpected property %q", prop)
		}
	}
	if !sawStart {
		return domain.RecurrenceRule{}, malformed("missing DTSTART")
	}
	if !sawRule {
		return domain.RecurrenceRule{}, malformed("missing RRULE")
	}
	return DecodeValue(anchor, value)
}

// DecodeValue parses an RRULE value (optionally prefixed with "RRULE:") and
// binds it to anchor. The result is validated; invariant violations are
// reported as ErrMalformedRule wrapping the *domain.RuleError.
func DecodeValue(anchor calendar.Date, value string) (domain.RecurrenceRule, error) {
	value = strings.TrimSpace(value)
	if len(value) >= len(rrulePrefix) && strings.EqualFold(value[:len(rrulePrefix)], rrulePrefix) {
		value = value[len(rrulePrefix):]
	}
	if value == "" {
		return domain.RecurrenceRule{}, malformed("empty rule")
	}

	r := domain.RecurrenceRule{Interval: 1, Anchor: anchor}
	seen := make(map[string]bool)
	var (
		count    int
		until    calendar.Date
		hasCount bool
		hasUntil bool
	)
	for _, tok := range strings.Split(value, ";") {
		if tok == "" {
			continue
		}
		key, val, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return domain.RecurrenceRule{}, malformed("token %q is not KEY=VALUE", tok)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if seen[key] {
			return domain.RecurrenceRule{}, malformed("duplicate %s", key)
		}
		seen[key] = true

		switch key {
		case "FREQ":
			f, err := parseFreq(val)
			if err != nil {
				return domain.RecurrenceRule{}, err
			}
			r.Frequency = f
		case "INTERVAL":
			n, err := parsePositive(key, val)
			if err != nil {
				return domain.RecurrenceRule{}, err
			}
			r.Interval = n
		case "BYDAY":
			set, err := parseByDay(val)
			if err != nil {
				return domain.RecurrenceRule{}, err
			}
			r.Weekdays = set
		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return domain.RecurrenceRule{}, malformed("BYMONTHDAY %q must be a single day 1..31", val)
			}
			r.MonthDay = n
		case "COUNT":
			n, err := parsePositive(key, val)
			if err != nil {
				return domain.RecurrenceRule{}, err
			}
			count, hasCount = n, true
		case "UNTIL":
			d, err := parseDateValue(val)
			if err != nil {
				return domain.RecurrenceRule{}, malformed("UNTIL: %v", err)
			}
			until, hasUntil = d, true
		default:
			r.Extensions = append(r.Extensions, tok)
		}
	}

	if !seen["FREQ"] {
		return domain.RecurrenceRule{}, malformed("missing FREQ")
	}
	switch {
	case hasCount && hasUntil:
		return domain.RecurrenceRule{}, malformed("COUNT and UNTIL are mutually exclusive")
	case hasCount:
		r.Bound = domain.CountBound(count)
	case hasUntil:
		r.Bound = domain.UntilBound(until)
	}

	if err := r.Validate(); err != nil {
		return domain.RecurrenceRule{}, fmt.Errorf("%w: %w", domain.ErrMalformedRule, err)
	}
	return r, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedRule, fmt.Sprintf(format, args...))
}

func parseFreq(val string) (domain.Frequency, error) {
	up := strings.ToUpper(strings.TrimSpace(val))
	for f, tok := range freqTokens {
		if tok == up {
			return f, nil
		}
	}
	return "", malformed("unknown FREQ %q", val)
}

func parsePositive(key, val string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, malformed("%s %q is not a number", key, val)
	}
	if n < 1 {
		return 0, malformed("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// parseByDay accepts plain two-letter codes only. Ordinal forms such as 1MO
// or -1FR are rejected.
func parseByDay(val string) (domain.WeekdaySet, error) {
	if strings.TrimSpace(val) == "" {
		return 0, malformed("BYDAY is empty")
	}
	var set domain.WeekdaySet
	for _, code := range strings.Split(val, ",") {
		d, ok := weekdayByCode[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			return 0, malformed("BYDAY token %q is not one of MO..SU", code)
		}
		set = set.With(d)
	}
	return set, nil
}

// parseDateValue accepts DATE (20230501) and DATE-TIME (20230501T000000Z)
// values and keeps only the calendar date.
func parseDateValue(val string) (calendar.Date, error) {
	val = strings.TrimSpace(val)
	if i := strings.IndexAny(val, "Tt"); i >= 0 {
		clock := strings.TrimSuffix(strings.TrimSuffix(val[i+1:], "Z"), "z")
		if len(clock) != 6 || strings.Trim(clock, "0123456789") != "" {
			return calendar.Date{}, fmt.Errorf("bad time part in %q", val)
		}
		val = val[:i]
	}
	return calendar.ParseCompact(val)
}
