package calendar

import "time"

// Unit is the step unit used by Step.
type Unit int

const (
	UnitDay Unit = iota
	UnitWeek
	UnitMonth
	UnitYear
)

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeap(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// AddWeeks returns d shifted by n weeks.
func (d Date) AddWeeks(n int) Date {
	return d.AddDays(7 * n)
}

// AddMonthsClamped returns d shifted by n months. When the target month is
// shorter than d.Day the result is clamped to its last day, so Jan 31 + 1
// month is Feb 28 (or 29), never a day in March.
func (d Date) AddMonthsClamped(n int) Date {
	y, m := addMonths(d.Year, d.Month, n)
	day := d.Day
	if last := DaysIn(y, m); day > last {
		day = last
	}
	return Date{Year: y, Month: m, Day: day}
}

// AddYearsClamped returns d shifted by n years, clamping Feb 29 to Feb 28
// in non-leap target years.
func (d Date) AddYearsClamped(n int) Date {
	return d.AddMonthsClamped(12 * n)
}

// MonthOffset returns the (year, month) n months after d's month, ignoring
// the day.
func (d Date) MonthOffset(n int) (int, time.Month) {
	return addMonths(d.Year, d.Month, n)
}

// StartOfWeek returns the Monday on or before d.
func (d Date) StartOfWeek() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// Step advances d by n units. Month and year steps clamp.
func Step(d Date, unit Unit, n int) Date {
	switch unit {
	case UnitWeek:
		return d.AddWeeks(n)
	case UnitMonth:
		return d.AddMonthsClamped(n)
	case UnitYear:
		return d.AddYearsClamped(n)
	default:
		return d.AddDays(n)
	}
}

// DaysBetween returns the number of days from a to b (negative when b is
// before a).
func DaysBetween(a, b Date) int {
	return int((b.Time().Unix() - a.Time().Unix()) / 86400)
}

// MonthsBetween returns the number of whole calendar months from a's month
// to b's month, ignoring days.
func MonthsBetween(a, b Date) int {
	return (b.Year-a.Year)*12 + int(b.Month) - int(a.Month)
}

// WeeksBetween returns the number of Monday-based weeks from a's week to
// b's week.
func WeeksBetween(a, b Date) int {
	return floorDiv(DaysBetween(a.StartOfWeek(), b.StartOfWeek()), 7)
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + n
	return floorDiv(idx, 12), time.Month(idx-floorDiv(idx, 12)*12) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
