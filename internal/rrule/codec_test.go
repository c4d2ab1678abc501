package rrule

import (
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var canonicalRules = []struct {
	name string
	rule domain.RecurrenceRule
}{
	{"weekly_mwf", domain.RecurrenceRule{
		Frequency: domain.FreqWeekly, Interval: 1,
		Weekdays: domain.NewWeekdaySet(time.Friday, time.Monday, time.Wednesday),
		Anchor:   calendar.MustParse("2023-05-01"),
	}},
	{"daily_every_7", domain.RecurrenceRule{
		Frequency: domain.FreqDaily, Interval: 7,
		Anchor: calendar.MustParse("2023-05-01"),
	}},
	{"monthly_31_count", domain.RecurrenceRule{
		Frequency: domain.FreqMonthly, Interval: 1, MonthDay: 31,
		Bound:  domain.CountBound(12),
		Anchor: calendar.MustParse("2023-01-31"),
	}},
	{"yearly_leap_until", domain.RecurrenceRule{
		Frequency: domain.FreqYearly, Interval: 1,
		Bound:  domain.UntilBound(calendar.MustParse("2032-02-29")),
		Anchor: calendar.MustParse("2024-02-29"),
	}},
	{"weekly_extensions", domain.RecurrenceRule{
		Frequency: domain.FreqWeekly, Interval: 2,
		Weekdays:   domain.NewWeekdaySet(time.Sunday, time.Monday),
		Anchor:     calendar.MustParse("2023-05-07"),
		Extensions: []string{"WKST=MO", "X-CADENCE-COLOR=blue"},
	}},
}

func TestEncode_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	for _, tc := range canonicalRules {
		t.Run(tc.name, func(t *testing.T) {
			g.Assert(t, tc.name, []byte(Encode(tc.rule)))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range canonicalRules {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.rule.Validate())

			got, err := Decode(Encode(tc.rule))
			require.NoError(t, err)
			assert.Equal(t, tc.rule, got)
			assert.Equal(t, Encode(tc.rule), Encode(got), "encoding must be stable")
		})
	}
}

func TestRoundTrip_AllShapes(t *testing.T) {
	anchor := calendar.MustParse("2023-03-15")
	bounds := []domain.Bound{domain.Unbounded(), domain.CountBound(1), domain.CountBound(40), domain.UntilBound(anchor), domain.UntilBound(anchor.AddDays(400))}
	for _, freq := range []domain.Frequency{domain.FreqDaily, domain.FreqWeekly, domain.FreqMonthly, domain.FreqYearly} {
		for _, interval := range []int{1, 2, 13} {
			for _, b := range bounds {
				r := domain.RecurrenceRule{Frequency: freq, Interval: interval, Bound: b, Anchor: anchor}
				switch freq {
				case domain.FreqWeekly:
					r.Weekdays = domain.Weekdays
				case domain.FreqMonthly:
					r.MonthDay = 30
				}
				got, err := Decode(Encode(r))
				require.NoError(t, err, Encode(r))
				assert.True(t, r.Equal(got), Encode(r))

				r.Extensions = []string{"WKST=SU", "x-cadence-color=blue"}
				got, err = Decode(Encode(r))
				require.NoError(t, err, Encode(r))
				assert.True(t, r.Equal(got), Encode(r))
			}
		}
	}
}

func TestExtensionsThatWouldNotRoundTripAreInvalid(t *testing.T) {
	base := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 1, Anchor: calendar.MustParse("2023-05-01")}
	for _, ext := range []string{"UNTIL=20240101", "X-A=1;COUNT=2", "interval=3", "X-NOTE", "X-A=a b"} {
		r := base
		r.Extensions = []string{ext}
		assert.ErrorIs(t, r.Validate(), domain.ErrInvalidRule, ext)
	}

	// Decoded tokens go through the same check.
	_, err := DecodeValue(base.Anchor, "FREQ=DAILY;X-A=1;x-a=2")
	assert.ErrorIs(t, err, domain.ErrMalformedRule)
}

func TestDecode_Lenient(t *testing.T) {
	want := domain.RecurrenceRule{
		Frequency: domain.FreqWeekly, Interval: 1,
		Weekdays: domain.NewWeekdaySet(time.Monday, time.Wednesday),
		Bound:    domain.UntilBound(calendar.MustParse("2023-06-30")),
		Anchor:   calendar.MustParse("2023-05-01"),
	}
	inputs := []string{
		"DTSTART;VALUE=DATE:20230501\nRRULE:FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20230630",
		"DTSTART:20230501\r\nRRULE:freq=weekly;byday=we,mo;until=20230630T235959Z",
		"RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;UNTIL=20230630\nDTSTART:20230501T090000Z\n",
	}
	for _, in := range inputs {
		got, err := Decode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestDecodeValue(t *testing.T) {
	anchor := calendar.MustParse("2023-05-01")
	r, err := DecodeValue(anchor, "RRULE:FREQ=DAILY;INTERVAL=7;COUNT=5")
	require.NoError(t, err)
	assert.Equal(t, domain.FreqDaily, r.Frequency)
	assert.Equal(t, 7, r.Interval)
	assert.Equal(t, domain.CountBound(5), r.Bound)
	assert.Equal(t, "FREQ=DAILY;INTERVAL=7;COUNT=5", EncodeValue(r))
}

func TestDecode_Malformed(t *testing.T) {
	const start = "DTSTART;VALUE=DATE:20230501\n"
	tests := []struct {
		name string
		in   string
	}{
		{"unknown freq", start + "RRULE:FREQ=HOURLY"},
		{"missing freq", start + "RRULE:INTERVAL=2"},
		{"zero interval", start + "RRULE:FREQ=DAILY;INTERVAL=0"},
		{"negative interval", start + "RRULE:FREQ=DAILY;INTERVAL=-1"},
		{"text interval", start + "RRULE:FREQ=DAILY;INTERVAL=two"},
		{"count and until", start + "RRULE:FREQ=DAILY;COUNT=3;UNTIL=20230601"},
		{"zero count", start + "RRULE:FREQ=DAILY;COUNT=0"},
		{"bad weekday", start + "RRULE:FREQ=WEEKLY;BYDAY=MO,XX"},
		{"ordinal weekday", start + "RRULE:FREQ=WEEKLY;BYDAY=1MO"},
		{"empty byday", start + "RRULE:FREQ=WEEKLY;BYDAY="},
		{"duplicate key", start + "RRULE:FREQ=DAILY;FREQ=WEEKLY"},
		{"bad monthday", start + "RRULE:FREQ=MONTHLY;BYMONTHDAY=0"},
		{"list monthday", start + "RRULE:FREQ=MONTHLY;BYMONTHDAY=1,15"},
		{"bad until", start + "RRULE:FREQ=DAILY;UNTIL=2023-06-01"},
		{"not key value", start + "RRULE:FREQ=DAILY;FOO"},
		{"missing dtstart", "RRULE:FREQ=DAILY"},
		{"missing rrule", "DTSTART;VALUE=DATE:20230501"},
		{"bad dtstart", "DTSTART;VALUE=DATE:20230230\nRRULE:FREQ=DAILY"},
		{"unexpected line", start + "RRULE:FREQ=DAILY\nEXDATE:20230502"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedRule), err.Error())
		})
	}
}

func TestDecode_InvariantViolationKeepsFieldReason(t *testing.T) {
	_, err := Decode("DTSTART;VALUE=DATE:20230501\nRRULE:FREQ=DAILY;BYDAY=MO")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedRule)
	assert.ErrorIs(t, err, domain.ErrInvalidRule)

	var re *domain.RuleError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "weekdays", re.Field)

	_, err = Decode("DTSTART;VALUE=DATE:20230501\nRRULE:FREQ=DAILY;UNTIL=20230401")
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "bound", re.Field)
}
