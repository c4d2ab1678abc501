package service

import (
	"context"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

// CreateGoalRequest describes a new recurring goal. A zero Horizon means the
// configured default distance from the rule's anchor.
type CreateGoalRequest struct {
	Title       string
	Description string
	Rule        domain.RecurrenceRule
	Horizon     calendar.Date
}

// SyncResult counts the rows a resynchronization touched.
type SyncResult struct {
	Created int
	Deleted int
	Horizon calendar.Date
}

// CalendarEntry is one occurrence together with the goal it belongs to.
type CalendarEntry struct {
	Goal       *domain.Goal
	Occurrence domain.Occurrence
}

type RecurrenceService interface {
	CreateRecurringGoal(ctx context.Context, req CreateGoalRequest) (*domain.Goal, error)
	UpdateRule(ctx context.Context, goalID string, rule domain.RecurrenceRule, horizon calendar.Date) (*SyncResult, error)
	MarkOccurrence(ctx context.Context, occurrenceID string, patch domain.OccurrencePatch) (*domain.Occurrence, error)
	RescheduleOccurrence(ctx context.Context, occurrenceID string, date calendar.Date) (*domain.Occurrence, error)
	DeleteOccurrence(ctx context.Context, occurrenceID string) error
	OccurrencesInRange(ctx context.Context, goalID string, window calendar.Range) ([]domain.Occurrence, error)
	// Exceptions returns every user-edited occurrence of the goal, cancelled
	// ones included, ordered by date.
	Exceptions(ctx context.Context, goalID string) ([]domain.Occurrence, error)
	Calendar(ctx context.Context, window calendar.Range) ([]CalendarEntry, error)
	// UpdateGoal edits title and description. Rule and occurrences are untouched.
	UpdateGoal(ctx context.Context, goalID string, patch domain.GoalPatch) (*domain.Goal, error)
	GetGoal(ctx context.Context, goalID string) (*domain.Goal, error)
	ListGoals(ctx context.Context) ([]*domain.Goal, error)
	DeleteGoal(ctx context.Context, goalID string) error
	ExtendAll(ctx context.Context, horizon calendar.Date) (int, error)
}
