package generator

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

func dates(ss ...string) []calendar.Date {
	out := make([]calendar.Date, len(ss))
	for i, s := range ss {
		out[i] = d(s)
	}
	return out
}

func TestExpand_WeeklyMonWedFri(t *testing.T) {
	r := domain.RecurrenceRule{
		Frequency: domain.FreqWeekly, Interval: 1,
		Weekdays: domain.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
		Anchor:   d("2023-05-01"),
	}
	got, err := Expand(r, d("2023-05-01"), d("2023-05-31"))
	require.NoError(t, err)
	assert.Equal(t, dates(
		"2023-05-01", "2023-05-03", "2023-05-05",
		"2023-05-08", "2023-05-10", "2023-05-12",
		"2023-05-15", "2023-05-17", "2023-05-19",
		"2023-05-22", "2023-05-24", "2023-05-26",
		"2023-05-29", "2023-05-31",
	), got)
}

func TestExpand_DailyInterval7(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 7, Anchor: d("2023-05-01")}
	got, err := Expand(r, d("2023-05-01"), d("2023-05-31"))
	require.NoError(t, err)
	assert.Equal(t, dates("2023-05-01", "2023-05-08", "2023-05-15", "2023-05-22", "2023-05-29"), got)
}

func TestExpand_MonthlyDay31SkipsShortMonths(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqMonthly, Interval: 1, MonthDay: 31, Anchor: d("2023-01-31")}
	got, err := Expand(r, d("2023-01-01"), d("2023-04-30"))
	require.NoError(t, err)
	assert.Equal(t, dates("2023-01-31", "2023-03-31"), got)

	got, err = Expand(r, d("2023-01-01"), d("2023-12-31"))
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func TestExpand_YearlyLeapDaySkipsCommonYears(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqYearly, Interval: 1, Anchor: d("2024-02-29")}
	got, err := Expand(r, d("2024-01-01"), d("2033-01-01"))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-02-29", "2028-02-29", "2032-02-29"), got)
}

func TestExpand_AnchorAlwaysFirst(t *testing.T) {
	// 2023-05-02 is a Tuesday; only Mon/Fri match afterwards.
	r := domain.RecurrenceRule{
		Frequency: domain.FreqWeekly, Interval: 1,
		Weekdays: domain.NewWeekdaySet(time.Monday, time.Friday),
		Anchor:   d("2023-05-02"),
		Bound:    domain.CountBound(3),
	}
	got, err := Expand(r, d("2023-01-01"), d("2023-12-31"))
	require.NoError(t, err)
	assert.Equal(t, dates("2023-05-02", "2023-05-05", "2023-05-08"), got)
}

func TestExpand_CountIsExactRegardlessOfWindow(t *testing.T) {
	r := domain.RecurrenceRule{
		Frequency: domain.FreqWeekly, Interval: 2,
		Weekdays: domain.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
		Anchor:   d("2023-05-01"),
		Bound:    domain.CountBound(10),
	}
	for _, end := range []string{"2023-09-01", "2025-01-01", "2033-01-01"} {
		got, err := Expand(r, d("2023-05-01"), d(end))
		require.NoError(t, err)
		assert.Len(t, got, 10, end)
	}

	// A window starting mid-series still sees only the tail of the same ten.
	got, err := Expand(r, d("2023-06-01"), d("2030-01-01"))
	require.NoError(t, err)
	assert.Equal(t, dates("2023-06-02", "2023-06-12"), got)
}

func TestExpand_UntilIsInclusive(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 7, Anchor: d("2023-05-01"), Bound: domain.UntilBound(d("2023-05-15"))}
	got, err := Expand(r, d("2023-01-01"), d("2023-12-31"))
	require.NoError(t, err)
	assert.Equal(t, dates("2023-05-01", "2023-05-08", "2023-05-15"), got)
}

func TestExpand_WeeklyIntervalUsesMondayWeeks(t *testing.T) {
	// Anchor on Sunday: its week began on Monday 2023-05-01, so the next
	// active week starts 2023-05-15.
	r := domain.RecurrenceRule{
		Frequency: domain.FreqWeekly, Interval: 2,
		Weekdays: domain.NewWeekdaySet(time.Monday, time.Sunday),
		Anchor:   d("2023-05-07"),
	}
	got, err := Expand(r, d("2023-05-01"), d("2023-05-31"))
	require.NoError(t, err)
	assert.Equal(t, dates("2023-05-07", "2023-05-15", "2023-05-21", "2023-05-29"), got)
}

func TestExpand_FastForwardFarWindow(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 3, Anchor: d("1900-01-01")}
	got, err := Expand(r, d("2023-05-01"), d("2023-05-10"))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, x := range got {
		assert.Equal(t, 0, calendar.DaysBetween(r.Anchor, x)%3)
	}
	assert.Equal(t, dates("2023-05-01", "2023-05-04", "2023-05-07", "2023-05-10"), got)
}

func TestExpand_WindowBeforeAnchorAndInverted(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 1, Anchor: d("2023-05-01")}
	got, err := Expand(r, d("2023-01-01"), d("2023-04-30"))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Expand(r, d("2023-05-10"), d("2023-05-01"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpand_RestartableWithoutSharedState(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqMonthly, Interval: 2, Anchor: d("2023-01-15")}
	a, err := Expand(r, d("2023-01-01"), d("2023-12-31"))
	require.NoError(t, err)
	_, err = Expand(r, d("2030-01-01"), d("2030-12-31"))
	require.NoError(t, err)
	b, err := Expand(r, d("2023-01-01"), d("2023-12-31"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExpand_InvalidRule(t *testing.T) {
	_, err := Expand(domain.RecurrenceRule{Frequency: domain.FreqDaily, Anchor: d("2023-05-01")}, d("2023-05-01"), d("2023-05-31"))
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestExpandContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 1, Anchor: d("2023-05-01")}
	got, err := ExpandContext(ctx, r, d("2023-05-01"), d("2033-05-01"))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, got)
}

func TestOccurrences_LazyAndTerminating(t *testing.T) {
	r := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 1, Anchor: d("2023-05-01")}
	var first []calendar.Date
	for x := range Occurrences(r) {
		first = append(first, x)
		if len(first) == 3 {
			break
		}
	}
	assert.Equal(t, dates("2023-05-01", "2023-05-02", "2023-05-03"), first)

	counted := r
	counted.Bound = domain.CountBound(4)
	assert.Len(t, slices.Collect(Occurrences(counted)), 4)

	// BYMONTHDAY=31 stepping a year at a time from April never matches.
	never := domain.RecurrenceRule{Frequency: domain.FreqMonthly, Interval: 12, MonthDay: 31, Anchor: d("2023-04-15")}
	assert.Equal(t, dates("2023-04-15"), slices.Collect(Occurrences(never)))

	assert.Empty(t, slices.Collect(Occurrences(domain.RecurrenceRule{})))
}
