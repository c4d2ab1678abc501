package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/generator"
	"github.com/alexanderramin/cadence/internal/reconcile"
	"github.com/alexanderramin/cadence/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"golang.org/x/sync/errgroup"
)

// RecurrenceConfig tunes the recurrence service.
type RecurrenceConfig struct {
	// DefaultHorizonDays is how far past the anchor a new goal is
	// materialized when the caller gives no horizon.
	DefaultHorizonDays int
	// OperationTimeout bounds every use case. Zero disables the bound.
	OperationTimeout time.Duration
	// Parallelism caps how many goals are extended at once.
	Parallelism int
}

func DefaultRecurrenceConfig() RecurrenceConfig {
	return RecurrenceConfig{
		DefaultHorizonDays: 365,
		OperationTimeout:   30 * time.Second,
		Parallelism:        4,
	}
}

type recurrenceService struct {
	goals       repository.GoalRepo
	occurrences repository.OccurrenceRepo
	uow         db.UnitOfWork
	expander    *generator.Expander
	cfg         RecurrenceConfig
	locks       *KeyedMutex
	observer    UseCaseObserver
	now         func() time.Time
	newID       func() string
}

func NewRecurrenceService(
	goals repository.GoalRepo,
	occurrences repository.OccurrenceRepo,
	uow db.UnitOfWork,
	expander *generator.Expander,
	cfg RecurrenceConfig,
	observers ...UseCaseObserver,
) RecurrenceService {
	if expander == nil {
		expander = generator.NewExpander(generator.DefaultLimits(), nil)
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &recurrenceService{
		goals:       goals,
		occurrences: occurrences,
		uow:         uow,
		expander:    expander,
		cfg:         cfg,
		locks:       NewKeyedMutex(),
		observer:    useCaseObserverOrNoop(observers),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

// txRepos are the repositories bound to one transaction. Inside WithinTx only
// these may be used; the service-level repos would need a second connection.
type txRepos struct {
	goals       repository.GoalRepo
	rules       repository.RuleRepo
	occurrences repository.OccurrenceRepo
}

func newTxRepos(tx db.DBTX) txRepos {
	return txRepos{
		goals:       repository.NewSQLiteGoalRepo(tx),
		rules:       repository.NewSQLiteRuleRepo(tx),
		occurrences: repository.NewSQLiteOccurrenceRepo(tx),
	}
}

func (s *recurrenceService) CreateRecurringGoal(ctx context.Context, req CreateGoalRequest) (goal *domain.Goal, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"frequency": string(req.Rule.Frequency)}
	defer func() { s.observe(ctx, "create-recurring-goal", startedAt, fields, err) }()

	title := domain.NormalizeText(req.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}
	rule := req.Rule.Normalized()
	if err = rule.Validate(); err != nil {
		return nil, err
	}
	horizon := req.Horizon
	if horizon.IsZero() {
		horizon = s.defaultHorizon(rule.Anchor)
	}
	if horizon.Before(rule.Anchor) {
		return nil, &domain.RuleError{Field: "horizon", Reason: fmt.Sprintf("%s is before start %s", horizon, rule.Anchor)}
	}

	var dates []calendar.Date
	if dates, err = s.expander.Expand(ctx, rule, calendar.NewRange(rule.Anchor, horizon)); err != nil {
		return nil, err
	}

	now := s.now()
	goal = &domain.Goal{
		ID:          s.newID(),
		Title:       title,
		Description: domain.NormalizeText(req.Description),
		Rule:        &rule,
		Horizon:     horizon,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rows := reconcile.Materialize(goal.ID, dates, s.newID, now)
	fields["goal_id"] = goal.ID
	fields["created"] = len(rows)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repos := newTxRepos(tx)
		if err := repos.goals.Create(ctx, goal); err != nil {
			return err
		}
		return repos.occurrences.ApplyDiff(ctx, goal.ID, rows, nil)
	})
	if err != nil {
		return nil, domain.WrapPersistence("create goal", err)
	}
	return goal, nil
}

func (s *recurrenceService) UpdateRule(ctx context.Context, goalID string, rule domain.RecurrenceRule, horizon calendar.Date) (result *SyncResult, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"goal_id": goalID, "frequency": string(rule.Frequency)}
	defer func() { s.observe(ctx, "update-rule", startedAt, fields, err) }()

	rule = rule.Normalized()
	if err = rule.Validate(); err != nil {
		return nil, err
	}

	var unlock func()
	if unlock, err = s.locks.Lock(ctx, goalID); err != nil {
		return nil, err
	}
	defer unlock()

	var goal *domain.Goal
	if goal, err = s.loadGoal(ctx, goalID); err != nil {
		return nil, err
	}

	target := horizon
	if target.IsZero() {
		target = goal.Horizon
	}
	if target.IsZero() {
		target = s.defaultHorizon(rule.Anchor)
	}
	end := calendar.Max(target, goal.Horizon)
	if goal.Rule != nil && goal.Rule.Equal(rule) && end == goal.Horizon {
		fields["noop"] = true
		return &SyncResult{Horizon: goal.Horizon}, nil
	}

	// Rows generated by the previous rule start at its anchor, so the window
	// must reach back that far for them to be reconsidered.
	start := rule.Anchor
	if goal.Rule != nil {
		start = calendar.Min(start, goal.Rule.Anchor)
	}
	window := calendar.NewRange(start, end)
	var materialized calendar.Range
	if goal.Rule != nil {
		materialized = calendar.NewRange(goal.Rule.Anchor, goal.Horizon)
	}

	var dates []calendar.Date
	if dates, err = s.expander.Resync(ctx, rule, window, materialized); err != nil {
		return nil, err
	}

	now := s.now()
	result = &SyncResult{Horizon: end}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repos := newTxRepos(tx)
		// The expansion above was computed against goal.Rule. Another
		// process sharing the database may have replaced it since.
		stored, err := repos.rules.Load(ctx, goalID)
		if err != nil {
			return err
		}
		if !sameRule(stored, goal.Rule) {
			return errRuleChanged
		}
		existing, err := repos.occurrences.ListByGoal(ctx, goalID)
		if err != nil {
			return err
		}
		diff := reconcile.Reconcile(goalID, window, dates, existing)
		rows := reconcile.Materialize(goalID, diff.Create, s.newID, now)

		if err := repos.rules.Save(ctx, goalID, &rule); err != nil {
			return err
		}
		if end != goal.Horizon {
			if err := repos.goals.UpdateHorizon(ctx, goalID, end); err != nil {
				return err
			}
		}
		if err := repos.occurrences.ApplyDiff(ctx, goalID, rows, diff.DeleteIDs()); err != nil {
			return err
		}
		result.Created, result.Deleted = len(rows), len(diff.Delete)
		return nil
	})
	if err != nil {
		return nil, persistenceErr("update rule", err, domain.ErrGoalNotFound)
	}
	fields["created"] = result.Created
	fields["deleted"] = result.Deleted
	return result, nil
}

func (s *recurrenceService) MarkOccurrence(ctx context.Context, occurrenceID string, patch domain.OccurrencePatch) (occ *domain.Occurrence, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"occurrence_id": occurrenceID}
	defer func() { s.observe(ctx, "mark-occurrence", startedAt, fields, err) }()

	if d, ok := patch.Date.Get(); ok && !d.Valid() {
		return nil, fmt.Errorf("invalid occurrence date %s", d)
	}

	var current *domain.Occurrence
	if current, err = s.loadOccurrence(ctx, occurrenceID); err != nil {
		return nil, err
	}
	fields["goal_id"] = current.GoalID

	var unlock func()
	if unlock, err = s.locks.Lock(ctx, current.GoalID); err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repos := newTxRepos(tx)
		o, err := repos.occurrences.GetByID(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if o.Skipped {
			return fmt.Errorf("occurrence: %w", repository.ErrNotFound)
		}
		occ = o
		if !o.Apply(patch, now) {
			return nil
		}
		fields["changed"] = true
		if err := repos.occurrences.Update(ctx, o); err != nil {
			return err
		}
		if _, moved := patch.Date.Get(); moved {
			return dropGeneratedTwins(ctx, repos.occurrences, o)
		}
		return nil
	})
	if err != nil {
		return nil, persistenceErr("mark occurrence", err, domain.ErrOccurrenceNotFound)
	}
	return occ, nil
}

// dropGeneratedTwins removes Generated rows that share the date o was moved
// to. The exception owns that slot now, matching what Reconcile would do.
func dropGeneratedTwins(ctx context.Context, occurrences repository.OccurrenceRepo, o *domain.Occurrence) error {
	same, err := occurrences.ListByGoalInRange(ctx, o.GoalID, calendar.NewRange(o.Date, o.Date))
	if err != nil {
		return err
	}
	var ids []string
	for _, other := range same {
		if other.ID != o.ID && !other.IsException() {
			ids = append(ids, other.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return occurrences.ApplyDiff(ctx, o.GoalID, nil, ids)
}

func (s *recurrenceService) RescheduleOccurrence(ctx context.Context, occurrenceID string, date calendar.Date) (*domain.Occurrence, error) {
	return s.MarkOccurrence(ctx, occurrenceID, domain.OccurrencePatch{Date: mo.Some(date)})
}

func (s *recurrenceService) DeleteOccurrence(ctx context.Context, occurrenceID string) (err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"occurrence_id": occurrenceID}
	defer func() { s.observe(ctx, "delete-occurrence", startedAt, fields, err) }()

	var current *domain.Occurrence
	if current, err = s.loadOccurrence(ctx, occurrenceID); err != nil {
		return err
	}
	fields["goal_id"] = current.GoalID

	var unlock func()
	if unlock, err = s.locks.Lock(ctx, current.GoalID); err != nil {
		return err
	}
	defer unlock()

	now := s.now()
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		occurrences := repository.NewSQLiteOccurrenceRepo(tx)
		o, err := occurrences.GetByID(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if o.Skipped {
			return fmt.Errorf("occurrence: %w", repository.ErrNotFound)
		}
		o.Skip(now)
		return occurrences.Update(ctx, o)
	})
	return persistenceErr("delete occurrence", err, domain.ErrOccurrenceNotFound)
}

func (s *recurrenceService) OccurrencesInRange(ctx context.Context, goalID string, window calendar.Range) (occs []domain.Occurrence, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"goal_id": goalID, "window": window.String()}
	defer func() { s.observe(ctx, "occurrences-in-range", startedAt, fields, err) }()

	if !window.Valid() {
		return nil, fmt.Errorf("invalid range %s", window)
	}

	var extended bool
	if extended, err = s.extendGoal(ctx, goalID, window.End); err != nil {
		return nil, err
	}
	fields["extended"] = extended

	var rows []domain.Occurrence
	if rows, err = s.occurrences.ListByGoalInRange(ctx, goalID, window); err != nil {
		return nil, domain.WrapPersistence("list occurrences", err)
	}
	occs = visible(rows)
	fields["count"] = len(occs)
	return occs, nil
}

func (s *recurrenceService) Exceptions(ctx context.Context, goalID string) ([]domain.Occurrence, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.loadGoal(ctx, goalID); err != nil {
		return nil, err
	}
	rows, err := s.occurrences.ListByGoal(ctx, goalID)
	if err != nil {
		return nil, domain.WrapPersistence("list occurrences", err)
	}
	out := rows[:0:0]
	for _, o := range rows {
		if o.IsException() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *recurrenceService) Calendar(ctx context.Context, window calendar.Range) (entries []CalendarEntry, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"window": window.String()}
	defer func() { s.observe(ctx, "calendar", startedAt, fields, err) }()

	if !window.Valid() {
		return nil, fmt.Errorf("invalid range %s", window)
	}

	var goals []*domain.Goal
	if goals, err = s.goals.List(ctx); err != nil {
		return nil, domain.WrapPersistence("list goals", err)
	}
	var extended int
	if extended, err = s.extendGoals(ctx, goals, window.End); err != nil {
		return nil, err
	}
	fields["extended"] = extended

	var rows []domain.Occurrence
	if rows, err = s.occurrences.ListInRange(ctx, window); err != nil {
		return nil, domain.WrapPersistence("list occurrences", err)
	}

	byID := make(map[string]*domain.Goal, len(goals))
	for _, g := range goals {
		byID[g.ID] = g
	}
	for _, o := range visible(rows) {
		g, ok := byID[o.GoalID]
		if !ok {
			// Goal created after the listing above.
			continue
		}
		entries = append(entries, CalendarEntry{Goal: g, Occurrence: o})
	}
	slices.SortStableFunc(entries, func(a, b CalendarEntry) int {
		if c := a.Occurrence.Date.Compare(b.Occurrence.Date); c != 0 {
			return c
		}
		if a.Goal.Title < b.Goal.Title {
			return -1
		}
		if a.Goal.Title > b.Goal.Title {
			return 1
		}
		return 0
	})
	fields["count"] = len(entries)
	return entries, nil
}

func (s *recurrenceService) UpdateGoal(ctx context.Context, goalID string, patch domain.GoalPatch) (goal *domain.Goal, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"goal_id": goalID}
	defer func() { s.observe(ctx, "update-goal", startedAt, fields, err) }()

	var unlock func()
	if unlock, err = s.locks.Lock(ctx, goalID); err != nil {
		return nil, err
	}
	defer unlock()

	if goal, err = s.loadGoal(ctx, goalID); err != nil {
		return nil, err
	}
	var changed bool
	if changed, err = goal.Apply(patch, s.now()); err != nil {
		return nil, err
	}
	fields["changed"] = changed
	if !changed {
		return goal, nil
	}
	if err = s.goals.UpdateDetails(ctx, goal); err != nil {
		return nil, persistenceErr("update goal", err, domain.ErrGoalNotFound)
	}
	return goal, nil
}

func (s *recurrenceService) GetGoal(ctx context.Context, goalID string) (*domain.Goal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.loadGoal(ctx, goalID)
}

func (s *recurrenceService) ListGoals(ctx context.Context) ([]*domain.Goal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	goals, err := s.goals.List(ctx)
	if err != nil {
		return nil, domain.WrapPersistence("list goals", err)
	}
	return goals, nil
}

func (s *recurrenceService) DeleteGoal(ctx context.Context, goalID string) (err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"goal_id": goalID}
	defer func() { s.observe(ctx, "delete-goal", startedAt, fields, err) }()

	var unlock func()
	if unlock, err = s.locks.Lock(ctx, goalID); err != nil {
		return err
	}
	defer unlock()

	return persistenceErr("delete goal", s.goals.Delete(ctx, goalID), domain.ErrGoalNotFound)
}

func (s *recurrenceService) ExtendAll(ctx context.Context, horizon calendar.Date) (extended int, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	startedAt := s.now()
	fields := map[string]any{"horizon": horizon.String()}
	defer func() { s.observe(ctx, "extend-all", startedAt, fields, err) }()

	if !horizon.Valid() {
		return 0, fmt.Errorf("invalid horizon %s", horizon)
	}

	var goals []*domain.Goal
	if goals, err = s.goals.List(ctx); err != nil {
		return 0, domain.WrapPersistence("list goals", err)
	}
	fields["goals"] = len(goals)
	extended, err = s.extendGoals(ctx, goals, horizon)
	fields["extended"] = extended
	return extended, err
}

// extendGoals extends every recurring goal whose horizon ends before to.
// Each goal commits on its own. A failing goal does not stop the others;
// the failures are joined into the returned error.
func (s *recurrenceService) extendGoals(ctx context.Context, goals []*domain.Goal, to calendar.Date) (int, error) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)

	var (
		extended atomic.Int64
		mu       sync.Mutex
		errs     []error
	)
	for _, goal := range goals {
		if goal.Rule == nil || !to.After(goal.Horizon) {
			continue
		}
		g.Go(func() error {
			ok, err := s.extendGoal(ctx, goal.ID, to)
			switch {
			case errors.Is(err, domain.ErrGoalNotFound):
				// Deleted since the listing.
			case err != nil:
				mu.Lock()
				errs = append(errs, fmt.Errorf("goal %s: %w", goal.ID, err))
				mu.Unlock()
			case ok:
				extended.Add(1)
				goal.Horizon = to
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(extended.Load()), errors.Join(errs...)
}

// extendGoal materializes goalID through to under the goal's lock.
func (s *recurrenceService) extendGoal(ctx context.Context, goalID string, to calendar.Date) (bool, error) {
	unlock, err := s.locks.Lock(ctx, goalID)
	if err != nil {
		return false, err
	}
	defer unlock()

	goal, err := s.loadGoal(ctx, goalID)
	if err != nil {
		return false, err
	}
	return s.extendLocked(ctx, goal, to)
}

// extendLocked expands (horizon, to] and persists it in one unit of work.
// Nothing is written unless the whole window expanded, so a cancelled or
// timed-out expansion leaves the goal as it was.
func (s *recurrenceService) extendLocked(ctx context.Context, goal *domain.Goal, to calendar.Date) (bool, error) {
	if goal.Rule == nil || !to.After(goal.Horizon) {
		return false, nil
	}
	from := goal.Rule.Anchor
	if !goal.Horizon.IsZero() {
		from = calendar.Max(from, goal.Horizon.AddDays(1))
	}
	if to.Before(from) {
		return false, nil
	}
	window := calendar.NewRange(from, to)

	dates, err := s.expander.Expand(ctx, *goal.Rule, window)
	if err != nil {
		return false, err
	}

	now := s.now()
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repos := newTxRepos(tx)
		existing, err := repos.occurrences.ListByGoal(ctx, goal.ID)
		if err != nil {
			return err
		}
		diff := reconcile.Reconcile(goal.ID, window, dates, existing)
		rows := reconcile.Materialize(goal.ID, diff.Create, s.newID, now)
		if err := repos.occurrences.ApplyDiff(ctx, goal.ID, rows, diff.DeleteIDs()); err != nil {
			return err
		}
		return repos.goals.UpdateHorizon(ctx, goal.ID, to)
	})
	if err != nil {
		return false, persistenceErr("extend horizon", err, domain.ErrGoalNotFound)
	}
	goal.Horizon = to
	return true, nil
}

func (s *recurrenceService) loadGoal(ctx context.Context, goalID string) (*domain.Goal, error) {
	goal, err := s.goals.GetByID(ctx, goalID)
	if err != nil {
		return nil, persistenceErr("load goal", err, domain.ErrGoalNotFound)
	}
	return goal, nil
}

func (s *recurrenceService) loadOccurrence(ctx context.Context, occurrenceID string) (*domain.Occurrence, error) {
	o, err := s.occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return nil, persistenceErr("load occurrence", err, domain.ErrOccurrenceNotFound)
	}
	if o.Skipped {
		return nil, fmt.Errorf("%w: %s", domain.ErrOccurrenceNotFound, occurrenceID)
	}
	return o, nil
}

func (s *recurrenceService) defaultHorizon(anchor calendar.Date) calendar.Date {
	if s.cfg.DefaultHorizonDays > 0 {
		return anchor.AddDays(s.cfg.DefaultHorizonDays)
	}
	return anchor.AddYearsClamped(1)
}

func (s *recurrenceService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

func (s *recurrenceService) observe(ctx context.Context, name string, startedAt time.Time, fields map[string]any, err error) {
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  s.now().Sub(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

// persistenceErr maps repository.ErrNotFound to notFound and classifies
// everything else through domain.WrapPersistence.
func persistenceErr(op string, err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", notFound, op)
	}
	return domain.WrapPersistence(op, err)
}

var errRuleChanged = errors.New("rule changed by another writer")

func sameRule(a, b *domain.RecurrenceRule) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// visible drops cancelled occurrences.
func visible(rows []domain.Occurrence) []domain.Occurrence {
	out := rows[:0:0]
	for _, o := range rows {
		if !o.Skipped {
			out = append(out, o)
		}
	}
	return out
}
