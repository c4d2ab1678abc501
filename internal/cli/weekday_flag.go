package cli

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

// weekdaysValue is a pflag.Value for --on. It accepts comma separated
// weekday names or codes (mon,wed,FR) and the presets everyday, weekdays
// and weekend. Repeating the flag adds to the set.
type weekdaysValue struct {
	set *domain.WeekdaySet
}

var _ pflag.Value = weekdaysValue{}

func newWeekdaysValue(set *domain.WeekdaySet) weekdaysValue {
	return weekdaysValue{set: set}
}

func (v weekdaysValue) String() string {
	if v.set == nil {
		return ""
	}
	return v.set.String()
}

func (v weekdaysValue) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if preset, ok := domain.Presets[part]; ok {
			*v.set |= preset
			continue
		}
		d, err := calendar.ParseWeekday(part)
		if err != nil {
			return err
		}
		*v.set = v.set.With(d)
	}
	return nil
}

func (v weekdaysValue) Type() string {
	return "weekdays"
}
