package domain

import (
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/samber/mo"
)

type Origin string

const (
	OriginGenerated Origin = "generated"
	OriginException Origin = "exception"
)

type Occurrence struct {
	ID     string
	GoalID string
	Date   calendar.Date

	// OriginalDate is the date the rule generated this occurrence for. It
	// differs from Date only after a reschedule.
	OriginalDate calendar.Date

	Completed bool
	Notes     *string
	Origin    Origin

	// Skipped marks an exception that stands for a cancelled occurrence: it
	// keeps its slot reserved so regeneration does not bring it back.
	Skipped bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Occurrence) IsException() bool {
	return o.Origin == OriginException
}

// Slots returns the dates this occurrence occupies for reconciliation. An
// exception holds both its current date and the slot it was generated for.
func (o *Occurrence) Slots() []calendar.Date {
	if o.OriginalDate.IsZero() || o.OriginalDate == o.Date {
		return []calendar.Date{o.Date}
	}
	return []calendar.Date{o.Date, o.OriginalDate}
}

// OccurrencePatch is a partial edit of an occurrence. Absent options leave
// the field unchanged; an empty Notes value clears the notes.
type OccurrencePatch struct {
	Completed mo.Option[bool]
	Notes     mo.Option[string]
	Date      mo.Option[calendar.Date]
}

// Empty reports whether the patch carries no edits.
func (p OccurrencePatch) Empty() bool {
	return p.Completed.IsAbsent() && p.Notes.IsAbsent() && p.Date.IsAbsent()
}

// Apply edits o in place. The first edit of a Generated occurrence turns it
// into an Exception so later rule changes cannot erase user data. Returns
// whether anything changed.
func (o *Occurrence) Apply(p OccurrencePatch, now time.Time) bool {
	changed := false
	if v, ok := p.Completed.Get(); ok && v != o.Completed {
		o.Completed = v
		changed = true
	}
	if v, ok := p.Notes.Get(); ok {
		v = NormalizeText(v)
		switch {
		case v == "" && o.Notes != nil:
			o.Notes = nil
			changed = true
		case v != "" && (o.Notes == nil || *o.Notes != v):
			o.Notes = &v
			changed = true
		}
	}
	if v, ok := p.Date.Get(); ok && v != o.Date {
		if o.OriginalDate.IsZero() {
			o.OriginalDate = o.Date
		}
		o.Date = v
		changed = true
	}
	if !changed {
		return false
	}
	o.Origin = OriginException
	o.UpdatedAt = now
	return true
}

// Skip marks o as a cancelled exception.
func (o *Occurrence) Skip(now time.Time) {
	o.Origin = OriginException
	o.Skipped = true
	o.UpdatedAt = now
}
