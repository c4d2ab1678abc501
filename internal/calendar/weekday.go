package calendar

import (
	"fmt"
	"strings"
	"time"
)

// MondayFirst lists weekdays in ISO order. Every canonical iteration over
// weekdays in this module uses it.
var MondayFirst = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var weekdayCodes = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

var weekdayNames = map[string]time.Weekday{
	"mo": time.Monday, "mon": time.Monday, "monday": time.Monday,
	"tu": time.Tuesday, "tue": time.Tuesday, "tuesday": time.Tuesday,
	"we": time.Wednesday, "wed": time.Wednesday, "wednesday": time.Wednesday,
	"th": time.Thursday, "thu": time.Thursday, "thursday": time.Thursday,
	"fr": time.Friday, "fri": time.Friday, "friday": time.Friday,
	"sa": time.Saturday, "sat": time.Saturday, "saturday": time.Saturday,
	"su": time.Sunday, "sun": time.Sunday, "sunday": time.Sunday,
}

// WeekdayCode returns the two-letter RFC 5545 code (MO..SU).
func WeekdayCode(w time.Weekday) string {
	return weekdayCodes[w]
}

// ParseWeekday accepts RFC 5545 codes and English names or abbreviations,
// case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	w, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return w, nil
}

// ShortName returns a three-letter English abbreviation ("Mon").
func ShortName(w time.Weekday) string {
	return w.String()[:3]
}
