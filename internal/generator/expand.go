// Package generator expands recurrence rules into concrete occurrence dates.
package generator

import (
	"context"
	"iter"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

// maxEmptyPeriods stops expansion of rules whose filters can never match,
// such as BYMONTHDAY=31 stepping 12 months from April. 4800 months covers a
// full 400-year Gregorian cycle.
const maxEmptyPeriods = 4800

// Expand returns the occurrences of rule in [start, end] in ascending order.
func Expand(rule domain.RecurrenceRule, start, end calendar.Date) ([]calendar.Date, error) {
	return ExpandContext(context.Background(), rule, start, end)
}

// ExpandContext is Expand with cancellation. The context is checked each
// time the candidate walk enters a new calendar month; on cancellation the
// context error is returned with no partial result.
func ExpandContext(ctx context.Context, rule domain.RecurrenceRule, start, end calendar.Date) ([]calendar.Date, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, nil
	}
	var out []calendar.Date
	err := walk(ctx, rule, start, end, func(d calendar.Date) bool {
		if !d.Before(start) {
			out = append(out, d)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Occurrences returns a lazy sequence over every occurrence of rule. The
// sequence is infinite for unbounded rules; consumers stop ranging when they
// have enough. An invalid rule yields nothing.
func Occurrences(rule domain.RecurrenceRule) iter.Seq[calendar.Date] {
	return func(yield func(calendar.Date) bool) {
		if rule.Validate() != nil {
			return
		}
		_ = walk(context.Background(), rule, rule.Anchor, calendar.Date{}, yield)
	}
}

// walk emits the occurrences of r in ascending order. Rules without a Count
// bound start at the first period that can hold from; Count rules always
// start at the anchor because every earlier occurrence consumes the count.
// The walk ends when emit returns false, the bound is exhausted, or a period
// begins after stop (a zero stop never ends the walk).
func walk(ctx context.Context, r domain.RecurrenceRule, from, stop calendar.Date, emit func(calendar.Date) bool) error {
	s := newStepper(r)
	count, hasCount := r.Bound.Count()
	until, hasUntil := r.Bound.Until()

	k := 0
	if !hasCount {
		k = s.firstPeriod(from)
	}

	emitted := 0
	accept := func(d calendar.Date) (cont bool) {
		if hasUntil && d.After(until) {
			return false
		}
		if !stop.IsZero() && d.After(stop) {
			return false
		}
		emitted++
		if !emit(d) {
			return false
		}
		return !hasCount || emitted < count
	}

	// The anchor is authoritative for occurrence #1 even when it does not
	// match the weekday or month-day filter.
	if k == 0 && !accept(r.Anchor) {
		return nil
	}

	lastMonth := -1
	empty := 0
	buf := make([]calendar.Date, 0, 7)
	for ; ; k++ {
		begin := s.periodStart(k)
		if !stop.IsZero() && begin.After(stop) {
			return nil
		}
		if hasUntil && begin.After(until) {
			return nil
		}
		if m := begin.Year*12 + int(begin.Month); m != lastMonth {
			if err := ctx.Err(); err != nil {
				return err
			}
			lastMonth = m
		}

		buf = s.candidates(k, buf[:0])
		found := false
		for _, d := range buf {
			if !d.After(r.Anchor) {
				continue
			}
			found = true
			if !accept(d) {
				return nil
			}
		}
		if found {
			empty = 0
		} else if empty++; empty > maxEmptyPeriods {
			return nil
		}
	}
}

// stepper computes the candidate dates of the k-th period of a rule.
type stepper struct {
	rule      domain.RecurrenceRule
	weekStart calendar.Date
	weekdays  []int // day offsets from Monday, ascending
	monthDay  int
}

func newStepper(r domain.RecurrenceRule) stepper {
	s := stepper{rule: r}
	switch r.Frequency {
	case domain.FreqWeekly:
		s.weekStart = r.Anchor.StartOfWeek()
		for _, d := range r.EffectiveWeekdays().Days() {
			s.weekdays = append(s.weekdays, (int(d)+6)%7)
		}
	case domain.FreqMonthly:
		s.monthDay = r.EffectiveMonthDay()
	}
	return s
}

// firstPeriod returns the smallest period index whose span can contain
// dates on or after from.
func (s stepper) firstPeriod(from calendar.Date) int {
	a := s.rule.Anchor
	if !from.After(a) {
		return 0
	}
	var units int
	switch s.rule.Frequency {
	case domain.FreqWeekly:
		units = calendar.WeeksBetween(a, from)
	case domain.FreqMonthly:
		units = calendar.MonthsBetween(a, from)
	case domain.FreqYearly:
		units = from.Year - a.Year
	default:
		units = calendar.DaysBetween(a, from)
	}
	return units / s.rule.Interval
}

// periodStart returns the first calendar day covered by period k.
func (s stepper) periodStart(k int) calendar.Date {
	a := s.rule.Anchor
	n := k * s.rule.Interval
	switch s.rule.Frequency {
	case domain.FreqWeekly:
		return s.weekStart.AddWeeks(n)
	case domain.FreqMonthly:
		y, m := a.MonthOffset(n)
		return calendar.New(y, m, 1)
	case domain.FreqYearly:
		return calendar.New(a.Year+n, 1, 1)
	default:
		return a.AddDays(n)
	}
}

// candidates appends the ascending candidate dates of period k to buf.
// Months without the target day and Feb 29 in common years yield nothing.
func (s stepper) candidates(k int, buf []calendar.Date) []calendar.Date {
	a := s.rule.Anchor
	n := k * s.rule.Interval
	switch s.rule.Frequency {
	case domain.FreqWeekly:
		start := s.weekStart.AddWeeks(n)
		for _, off := range s.weekdays {
			buf = append(buf, start.AddDays(off))
		}
	case domain.FreqMonthly:
		y, m := a.MonthOffset(n)
		if s.monthDay <= calendar.DaysIn(y, m) {
			buf = append(buf, calendar.New(y, m, s.monthDay))
		}
	case domain.FreqYearly:
		y := a.Year + n
		if a.Day <= calendar.DaysIn(y, a.Month) {
			buf = append(buf, calendar.New(y, a.Month, a.Day))
		}
	default:
		buf = append(buf, a.AddDays(n))
	}
	return buf
}
