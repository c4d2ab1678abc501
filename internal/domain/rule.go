package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/alexanderramin/cadence/internal/calendar"
)

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// ValidFrequencies is the canonical set of accepted frequency strings.
var ValidFrequencies = map[string]Frequency{
	"daily": FreqDaily, "weekly": FreqWeekly, "monthly": FreqMonthly, "yearly": FreqYearly,
}

// ParseFrequency accepts the lower-case names and the RFC 5545 tokens.
func ParseFrequency(s string) (Frequency, error) {
	f, ok := ValidFrequencies[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// Unit maps the frequency to its calendar step unit.
func (f Frequency) Unit() calendar.Unit {
	switch f {
	case FreqWeekly:
		return calendar.UnitWeek
	case FreqMonthly:
		return calendar.UnitMonth
	case FreqYearly:
		return calendar.UnitYear
	default:
		return calendar.UnitDay
	}
}

// WeekdaySet is a set of weekdays stored as a 7-bit mask indexed by
// time.Weekday.
type WeekdaySet uint8

// Weekday presets offered by the goal form.
const (
	Everyday WeekdaySet = 0x7f
	Weekdays WeekdaySet = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday
	Weekend  WeekdaySet = 1<<time.Saturday | 1<<time.Sunday
)

// Presets maps preset names to their sets.
var Presets = map[string]WeekdaySet{
	"everyday": Everyday,
	"weekdays": Weekdays,
	"weekend":  Weekend,
}

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet { return s | 1<<uint(d) }

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

func (s WeekdaySet) Empty() bool { return s&Everyday == 0 }

// Days returns the members in Monday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for _, d := range calendar.MondayFirst {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) Len() int {
	return len(s.Days())
}

func (s WeekdaySet) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = calendar.ShortName(d)
	}
	return strings.Join(names, ",")
}

type BoundKind string

const (
	BoundNone  BoundKind = "unbounded"
	BoundCount BoundKind = "count"
	BoundUntil BoundKind = "until"
)

// Bound is the end condition of a rule. Exactly one variant is active; use
// the constructors rather than building the struct by hand.
type Bound struct {
	kind  BoundKind
	count int
	until calendar.Date
}

func Unbounded() Bound { return Bound{} }

func CountBound(n int) Bound { return Bound{kind: BoundCount, count: n} }

func UntilBound(d calendar.Date) Bound { return Bound{kind: BoundUntil, until: d} }

// Kind returns the active variant; the zero Bound is Unbounded.
func (b Bound) Kind() BoundKind {
	if b.kind == "" {
		return BoundNone
	}
	return b.kind
}

// Count returns n and true for a Count bound.
func (b Bound) Count() (int, bool) {
	return b.count, b.Kind() == BoundCount
}

// Until returns the inclusive end date and true for an Until bound.
func (b Bound) Until() (calendar.Date, bool) {
	return b.until, b.Kind() == BoundUntil
}

func (b Bound) Equal(o Bound) bool {
	if b.Kind() != o.Kind() {
		return false
	}
	switch b.Kind() {
	case BoundCount:
		return b.count == o.count
	case BoundUntil:
		return b.until == o.until
	default:
		return true
	}
}

func (b Bound) String() string {
	switch b.Kind() {
	case BoundCount:
		return fmt.Sprintf("%d times", b.count)
	case BoundUntil:
		return "until " + b.until.String()
	default:
		return "forever"
	}
}

// RecurrenceRule is the compact recurrence definition attached to a goal.
type RecurrenceRule struct {
	Frequency Frequency
	Interval  int
	Weekdays  WeekdaySet // Weekly only; empty means the anchor's weekday
	MonthDay  int        // Monthly only; 0 means the anchor's day
	Bound     Bound
	Anchor    calendar.Date

	// Extensions holds RRULE tokens this engine does not interpret, kept
	// verbatim ("KEY=VALUE") so the text form round-trips.
	Extensions []string
}

// Validate checks the rule invariants and returns a *RuleError naming the
// first offending field.
func (r RecurrenceRule) Validate() error {
	if _, ok := ValidFrequencies[string(r.Frequency)]; !ok {
		return ruleErr("frequency", "unknown frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return ruleErr("interval", "must be at least 1, got %d", r.Interval)
	}
	if r.Anchor.IsZero() {
		return ruleErr("anchor", "start date is required")
	}
	if !r.Anchor.Valid() {
		return ruleErr("anchor", "%04d-%02d-%02d is not a calendar date", r.Anchor.Year, int(r.Anchor.Month), r.Anchor.Day)
	}
	if r.Weekdays&^Everyday != 0 {
		return ruleErr("weekdays", "contains bits outside Monday..Sunday")
	}
	if !r.Weekdays.Empty() && r.Frequency != FreqWeekly {
		return ruleErr("weekdays", "only allowed with weekly frequency, got %s", r.Frequency)
	}
	if r.MonthDay != 0 {
		if r.Frequency != FreqMonthly {
			return ruleErr("monthDay", "only allowed with monthly frequency, got %s", r.Frequency)
		}
		if r.MonthDay < 1 || r.MonthDay > 31 {
			return ruleErr("monthDay", "must be within 1..31, got %d", r.MonthDay)
		}
	}
	switch r.Bound.Kind() {
	case BoundNone:
	case BoundCount:
		if n, _ := r.Bound.Count(); n < 1 {
			return ruleErr("bound", "count must be at least 1, got %d", n)
		}
	case BoundUntil:
		until, _ := r.Bound.Until()
		if !until.Valid() {
			return ruleErr("bound", "until date is not a calendar date")
		}
		if until.Before(r.Anchor) {
			return ruleErr("bound", "until %s is before start %s", until, r.Anchor)
		}
	default:
		return ruleErr("bound", "unknown bound kind %q", r.Bound.Kind())
	}
	return validateExtensions(r.Extensions)
}

// coreRuleKeys are the RRULE keys the engine interprets itself.
var coreRuleKeys = map[string]bool{
	"FREQ": true, "INTERVAL": true, "BYDAY": true, "BYMONTHDAY": true, "COUNT": true, "UNTIL": true,
}

// validateExtensions accepts only tokens the text form carries back
// unchanged: one KEY=VALUE pair each, no separators or whitespace, and a key
// that is neither core nor repeated.
func validateExtensions(tokens []string) error {
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		key, _, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return ruleErr("extensions", "token %q is not KEY=VALUE", tok)
		}
		if strings.ContainsRune(tok, ';') || strings.IndexFunc(tok, unicode.IsSpace) >= 0 {
			return ruleErr("extensions", "token %q contains a separator or whitespace", tok)
		}
		key = strings.ToUpper(key)
		if coreRuleKeys[key] {
			return ruleErr("extensions", "%s is a core rule key", key)
		}
		if seen[key] {
			return ruleErr("extensions", "duplicate %s", key)
		}
		seen[key] = true
	}
	return nil
}

// Normalized fills defaults: Interval 0 becomes 1.
func (r RecurrenceRule) Normalized() RecurrenceRule {
	if r.Interval == 0 {
		r.Interval = 1
	}
	return r
}

// Equal reports whether two rules describe the same recurrence.
func (r RecurrenceRule) Equal(o RecurrenceRule) bool {
	return r.Frequency == o.Frequency &&
		r.Interval == o.Interval &&
		r.Weekdays == o.Weekdays &&
		r.MonthDay == o.MonthDay &&
		r.Bound.Equal(o.Bound) &&
		r.Anchor == o.Anchor &&
		slices.Equal(r.Extensions, o.Extensions)
}

// EffectiveWeekdays returns the weekday filter for weekly rules, defaulting
// to the anchor's weekday.
func (r RecurrenceRule) EffectiveWeekdays() WeekdaySet {
	if r.Weekdays.Empty() {
		return NewWeekdaySet(r.Anchor.Weekday())
	}
	return r.Weekdays
}

// EffectiveMonthDay returns the day-of-month for monthly rules, defaulting
// to the anchor's day.
func (r RecurrenceRule) EffectiveMonthDay() int {
	if r.MonthDay == 0 {
		return r.Anchor.Day
	}
	return r.MonthDay
}

// Describe returns a short human summary, e.g. "every 2 weeks on Mon,Wed from
// 2023-05-01, 10 times".
func (r RecurrenceRule) Describe() string {
	var b strings.Builder
	unit := map[Frequency]string{FreqDaily: "day", FreqWeekly: "week", FreqMonthly: "month", FreqYearly: "year"}[r.Frequency]
	if r.Interval <= 1 {
		b.WriteString("every " + unit)
	} else {
		fmt.Fprintf(&b, "every %d %ss", r.Interval, unit)
	}
	switch r.Frequency {
	case FreqWeekly:
		b.WriteString(" on " + r.EffectiveWeekdays().String())
	case FreqMonthly:
		fmt.Fprintf(&b, " on day %d", r.EffectiveMonthDay())
	}
	b.WriteString(" from " + r.Anchor.String())
	if r.Bound.Kind() != BoundNone {
		b.WriteString(", " + r.Bound.String())
	}
	return b.String()
}
