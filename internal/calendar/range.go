package calendar

import "fmt"

// Range is an inclusive date window.
type Range struct {
	Start Date
	End   Date
}

// NewRange returns the window [start, end].
func NewRange(start, end Date) Range {
	return Range{Start: start, End: end}
}

// Valid reports whether both bounds are set and Start <= End.
func (r Range) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Contains reports whether d lies within the window, bounds included.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of days covered, bounds included.
func (r Range) Days() int {
	if !r.Valid() {
		return 0
	}
	return DaysBetween(r.Start, r.End) + 1
}

// Intersect returns the days both windows cover. ok is false when they do
// not overlap.
func (r Range) Intersect(o Range) (Range, bool) {
	if !r.Valid() || !o.Valid() {
		return Range{}, false
	}
	out := Range{Start: Max(r.Start, o.Start), End: Min(r.End, o.End)}
	return out, out.Valid()
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start, r.End)
}
