package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMonthsClamped_EndOfMonth(t *testing.T) {
	tests := []struct {
		from   string
		months int
		want   string
	}{
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 2, "2023-03-31"},
		{"2023-03-31", 1, "2023-04-30"},
		{"2023-12-15", 1, "2024-01-15"},
		{"2023-01-15", -1, "2022-12-15"},
		{"2023-03-31", -1, "2023-02-28"},
		{"2023-05-10", 25, "2025-06-10"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			got := MustParse(tt.from).AddMonthsClamped(tt.months)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAddYearsClamped_LeapDay(t *testing.T) {
	assert.Equal(t, "2025-02-28", MustParse("2024-02-29").AddYearsClamped(1).String())
	assert.Equal(t, "2028-02-29", MustParse("2024-02-29").AddYearsClamped(4).String())
}

func TestAddDays_AcrossDSTAndYear(t *testing.T) {
	// 2023-03-26 is a DST switch in most of Europe; date math must not care.
	d := MustParse("2023-03-25")
	assert.Equal(t, "2023-03-26", d.AddDays(1).String())
	assert.Equal(t, "2023-03-27", d.AddDays(2).String())
	assert.Equal(t, "2024-01-01", MustParse("2023-12-31").AddDays(1).String())
	assert.Equal(t, "2024-02-29", MustParse("2024-02-28").AddDays(1).String())
}

func TestFromTime_UsesOwnLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	ts := time.Date(2023, 5, 1, 23, 30, 0, 0, time.UTC).In(loc)
	assert.Equal(t, "2023-05-02", FromTime(ts).String())
}

func TestStartOfWeek_IsMonday(t *testing.T) {
	for _, s := range []string{"2023-05-01", "2023-05-03", "2023-05-07"} {
		got := MustParse(s).StartOfWeek()
		assert.Equal(t, "2023-05-01", got.String(), s)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}

func TestBetweenHelpers(t *testing.T) {
	a := MustParse("2023-05-01")
	assert.Equal(t, 30, DaysBetween(a, MustParse("2023-05-31")))
	assert.Equal(t, -1, DaysBetween(a, MustParse("2023-04-30")))
	assert.Equal(t, 13, MonthsBetween(a, MustParse("2024-06-01")))
	assert.Equal(t, 1, WeeksBetween(MustParse("2023-05-07"), MustParse("2023-05-08")))
	assert.Equal(t, -1, WeeksBetween(a, MustParse("2023-04-30")))
}

func TestValidAndDaysIn(t *testing.T) {
	assert.True(t, Date{2024, time.February, 29}.Valid())
	assert.False(t, Date{2023, time.February, 29}.Valid())
	assert.False(t, Date{2023, time.April, 31}.Valid())
	assert.False(t, Date{}.Valid())
	assert.Equal(t, 29, DaysIn(2000, time.February))
	assert.Equal(t, 28, DaysIn(1900, time.February))
}

func TestCompareMinMax(t *testing.T) {
	a, b := MustParse("2023-01-31"), MustParse("2023-02-01")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, a, Min(a, b))
	assert.Equal(t, b, Max(a, b))
}

func TestTextRoundTrip(t *testing.T) {
	d := MustParse("2023-05-01")
	b, err := d.MarshalText()
	require.NoError(t, err)

	var back Date
	require.NoError(t, back.UnmarshalText(b))
	assert.Equal(t, d, back)
	assert.Equal(t, "20230501", d.Compact())

	c, err := ParseCompact("20230501")
	require.NoError(t, err)
	assert.Equal(t, d, c)

	_, err = Parse("2023-13-01")
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	for _, s := range []string{"MO", "mon", "Monday", " mo "} {
		w, err := ParseWeekday(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Monday, w)
	}
	_, err := ParseWeekday("1MO")
	assert.Error(t, err)
	assert.Equal(t, "SU", WeekdayCode(time.Sunday))
}

func TestRange(t *testing.T) {
	r := NewRange(MustParse("2023-05-01"), MustParse("2023-05-31"))
	assert.True(t, r.Valid())
	assert.Equal(t, 31, r.Days())
	assert.True(t, r.Contains(MustParse("2023-05-31")))
	assert.False(t, r.Contains(MustParse("2023-06-01")))
	assert.False(t, NewRange(MustParse("2023-05-02"), MustParse("2023-05-01")).Valid())
}

func TestStep(t *testing.T) {
	d := MustParse("2023-01-31")
	assert.Equal(t, "2023-02-07", Step(d, UnitWeek, 1).String())
	assert.Equal(t, "2023-02-28", Step(d, UnitMonth, 1).String())
	assert.Equal(t, "2024-01-31", Step(d, UnitYear, 1).String())
	assert.Equal(t, "2023-02-03", Step(d, UnitDay, 3).String())
}
