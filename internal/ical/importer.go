package ical

import (
	"context"
	"fmt"

	"github.com/samber/mo"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/service"
)

// ImportResult reports what one imported goal turned into.
type ImportResult struct {
	Goal    *domain.Goal
	Applied int
	// Unmatched lists exception dates the rule never generates.
	Unmatched []calendar.Date
}

// Importer creates goals from decoded entries through the recurrence
// service.
type Importer struct {
	svc service.RecurrenceService
}

func NewImporter(svc service.RecurrenceService) *Importer {
	return &Importer{svc: svc}
}

// Import creates one goal per entry and replays its exceptions. A non-zero
// horizon overrides the horizon stored in the document. Entries are imported
// in order; on error the goals created so far are returned with it.
func (im *Importer) Import(ctx context.Context, entries []Entry, horizon calendar.Date) ([]ImportResult, error) {
	results := make([]ImportResult, 0, len(entries))
	for _, e := range entries {
		res, err := im.importEntry(ctx, e, horizon)
		if err != nil {
			return results, fmt.Errorf("import %q: %w", e.Goal.Title, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (im *Importer) importEntry(ctx context.Context, e Entry, horizon calendar.Date) (ImportResult, error) {
	if e.Goal.Rule == nil {
		return ImportResult{}, fmt.Errorf("%w: goal without rule", ErrInvalidCalendar)
	}
	if horizon.IsZero() {
		horizon = e.Goal.Horizon
	}
	goal, err := im.svc.CreateRecurringGoal(ctx, service.CreateGoalRequest{
		Title:       e.Goal.Title,
		Description: e.Goal.Description,
		Rule:        *e.Goal.Rule,
		Horizon:     horizon,
	})
	if err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{Goal: goal}

	// Resolve every slot before editing anything: a reschedule may drop the
	// generated row another exception still needs to find.
	ids := make([]string, len(e.Exceptions))
	for i, x := range e.Exceptions {
		slot := x.OriginalDate
		if slot.IsZero() {
			slot = x.Date
		}
		occs, err := im.svc.OccurrencesInRange(ctx, goal.ID, calendar.NewRange(slot, slot))
		if err != nil {
			return res, err
		}
		if len(occs) == 0 {
			res.Unmatched = append(res.Unmatched, slot)
			continue
		}
		ids[i] = occs[0].ID
	}

	for i, x := range e.Exceptions {
		if ids[i] == "" {
			continue
		}
		if x.Skipped {
			if err := im.svc.DeleteOccurrence(ctx, ids[i]); err != nil {
				return res, err
			}
			res.Applied++
			continue
		}
		patch := exceptionPatch(x)
		if patch.Empty() {
			continue
		}
		if _, err := im.svc.MarkOccurrence(ctx, ids[i], patch); err != nil {
			return res, err
		}
		res.Applied++
	}
	return res, nil
}

func exceptionPatch(x domain.Occurrence) domain.OccurrencePatch {
	var p domain.OccurrencePatch
	if !x.OriginalDate.IsZero() && x.Date != x.OriginalDate {
		p.Date = mo.Some(x.Date)
	}
	if x.Completed {
		p.Completed = mo.Some(true)
	}
	if x.Notes != nil && *x.Notes != "" {
		p.Notes = mo.Some(*x.Notes)
	}
	return p
}
