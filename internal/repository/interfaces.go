package repository

import (
	"context"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

type GoalRepo interface {
	Create(ctx context.Context, g *domain.Goal) error
	GetByID(ctx context.Context, id string) (*domain.Goal, error)
	List(ctx context.Context) ([]*domain.Goal, error)
	UpdateHorizon(ctx context.Context, id string, horizon calendar.Date) error
	UpdateDetails(ctx context.Context, g *domain.Goal) error
	Delete(ctx context.Context, id string) error
}

// RuleRepo persists a goal's recurrence rule as canonical RRULE text.
type RuleRepo interface {
	// Load returns nil, nil when the goal has no rule and ErrNotFound when
	// the goal does not exist. Undecodable text yields domain.ErrMalformedRule.
	Load(ctx context.Context, goalID string) (*domain.RecurrenceRule, error)
	// Save replaces the goal's rule; a nil rule clears it.
	Save(ctx context.Context, goalID string, rule *domain.RecurrenceRule) error
}

type OccurrenceRepo interface {
	ListByGoal(ctx context.Context, goalID string) ([]domain.Occurrence, error)
	ListByGoalInRange(ctx context.Context, goalID string, window calendar.Range) ([]domain.Occurrence, error)
	ListInRange(ctx context.Context, window calendar.Range) ([]domain.Occurrence, error)
	GetByID(ctx context.Context, id string) (*domain.Occurrence, error)
	// ApplyDiff deletes deleteIDs and inserts create for one goal. Callers
	// run it inside a unit of work for all-or-nothing semantics.
	ApplyDiff(ctx context.Context, goalID string, create []domain.Occurrence, deleteIDs []string) error
	Update(ctx context.Context, o *domain.Occurrence) error
}
