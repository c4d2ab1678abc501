package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/google/uuid"
)

var testTitleCounter atomic.Int64

// WeeklyRule returns a weekly rule on the given days anchored at anchor.
func WeeklyRule(anchor string, days ...time.Weekday) domain.RecurrenceRule {
	return domain.RecurrenceRule{
		Frequency: domain.FreqWeekly,
		Interval:  1,
		Weekdays:  domain.NewWeekdaySet(days...),
		Anchor:    calendar.MustParse(anchor),
	}
}

// DailyRule returns a daily rule stepping every interval days from anchor.
func DailyRule(anchor string, interval int) domain.RecurrenceRule {
	return domain.RecurrenceRule{
		Frequency: domain.FreqDaily,
		Interval:  interval,
		Anchor:    calendar.MustParse(anchor),
	}
}

// Goal options
type GoalOption func(*domain.Goal)

func WithRule(r domain.RecurrenceRule) GoalOption {
	return func(g *domain.Goal) {
		g.Rule = &r
	}
}

func WithHorizon(d string) GoalOption {
	return func(g *domain.Goal) {
		g.Horizon = calendar.MustParse(d)
	}
}

func WithDescription(s string) GoalOption {
	return func(g *domain.Goal) {
		g.Description = s
	}
}

func NewTestGoal(title string, opts ...GoalOption) *domain.Goal {
	if title == "" {
		title = fmt.Sprintf("Goal %02d", testTitleCounter.Add(1))
	}
	now := time.Now().UTC().Truncate(time.Second)
	g := &domain.Goal{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Occurrence options
type OccurrenceOption func(*domain.Occurrence)

func AsException() OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.Origin = domain.OriginException
	}
}

func WithCompleted() OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.Completed = true
	}
}

func WithNotes(s string) OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.Notes = &s
	}
}

func WithOriginalDate(d string) OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.OriginalDate = calendar.MustParse(d)
	}
}

func NewTestOccurrence(goalID, date string, opts ...OccurrenceOption) domain.Occurrence {
	now := time.Now().UTC().Truncate(time.Second)
	d := calendar.MustParse(date)
	o := domain.Occurrence{
		ID:           uuid.New().String(),
		GoalID:       goalID,
		Date:         d,
		OriginalDate: d,
		Origin:       domain.OriginGenerated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
