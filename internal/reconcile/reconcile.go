// Package reconcile diffs the dates a rule generates against the occurrence
// rows already stored for a goal. It performs no I/O.
package reconcile

import (
	"slices"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

// Diff is the minimal change set that brings stored occurrences in line with
// a rule's expansion.
type Diff struct {
	Create []calendar.Date
	Delete []domain.Occurrence
}

func (d Diff) Empty() bool {
	return len(d.Create) == 0 && len(d.Delete) == 0
}

// DeleteIDs returns the IDs of the occurrences to delete.
func (d Diff) DeleteIDs() []string {
	ids := make([]string, len(d.Delete))
	for i, o := range d.Delete {
		ids[i] = o.ID
	}
	return ids
}

// Reconcile computes the diff for one goal over window. generated holds the
// rule's expansion over that window; existing may hold rows of any date.
//
//   - Generated rows inside window whose date is no longer generated are
//     deleted, as are generated twins of an exception.
//   - Generated dates with no row are created, unless an exception holds the
//     date either as its current date or as the slot it was generated for.
//   - Exceptions are never deleted and rows outside window are left alone.
//
// Applying the diff and reconciling again with the same inputs yields an
// empty diff.
func Reconcile(goalID string, window calendar.Range, generated []calendar.Date, existing []domain.Occurrence) Diff {
	held := make(map[calendar.Date]bool)
	for i := range existing {
		o := &existing[i]
		if o.GoalID != goalID || !o.IsException() {
			continue
		}
		for _, d := range o.Slots() {
			held[d] = true
		}
	}

	want := make(map[calendar.Date]bool, len(generated))
	for _, d := range generated {
		if window.Contains(d) {
			want[d] = true
		}
	}

	var diff Diff
	have := make(map[calendar.Date]bool)
	for _, o := range existing {
		if o.GoalID != goalID || o.IsException() || !window.Contains(o.Date) {
			continue
		}
		switch {
		case !want[o.Date], held[o.Date], have[o.Date]:
			diff.Delete = append(diff.Delete, o)
		default:
			have[o.Date] = true
		}
	}

	for d := range want {
		if !have[d] && !held[d] {
			diff.Create = append(diff.Create, d)
		}
	}
	slices.SortFunc(diff.Create, calendar.Date.Compare)
	slices.SortStableFunc(diff.Delete, func(a, b domain.Occurrence) int {
		return a.Date.Compare(b.Date)
	})
	return diff
}

// Materialize turns the dates of a diff into new Generated occurrences.
func Materialize(goalID string, dates []calendar.Date, newID func() string, now time.Time) []domain.Occurrence {
	out := make([]domain.Occurrence, len(dates))
	for i, d := range dates {
		out[i] = domain.Occurrence{
			ID:           newID(),
			GoalID:       goalID,
			Date:         d,
			OriginalDate: d,
			Origin:       domain.OriginGenerated,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return out
}
