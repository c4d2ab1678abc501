package generator

import (
	"context"
	"fmt"
	"slices"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/rrule"
)

// DefaultMaxSpanDays caps a single expansion window at roughly ten years.
const DefaultMaxSpanDays = 3660

// Limits bounds the work a single expansion may do.
type Limits struct {
	MaxSpanDays int
}

func DefaultLimits() Limits {
	return Limits{MaxSpanDays: DefaultMaxSpanDays}
}

// Check returns ErrHorizonExceeded when window spans more days than allowed.
// A non-positive MaxSpanDays disables the check.
func (l Limits) Check(window calendar.Range) error {
	if l.MaxSpanDays <= 0 || !window.Valid() {
		return nil
	}
	if days := window.Days(); days > l.MaxSpanDays {
		return fmt.Errorf("%w: %s spans %d days, limit is %d", domain.ErrHorizonExceeded, window, days, l.MaxSpanDays)
	}
	return nil
}

// CheckFresh is Check for a window that re-covers days already materialized.
// Only the days of window outside materialized count toward the limit.
func (l Limits) CheckFresh(window, materialized calendar.Range) error {
	if l.MaxSpanDays <= 0 || !window.Valid() {
		return nil
	}
	fresh := window.Days()
	if overlap, ok := window.Intersect(materialized); ok {
		fresh -= overlap.Days()
	}
	if fresh > l.MaxSpanDays {
		return fmt.Errorf("%w: %s adds %d unmaterialized days, limit is %d", domain.ErrHorizonExceeded, window, fresh, l.MaxSpanDays)
	}
	return nil
}

// Expander is the cache-aware front end used by the service layer.
type Expander struct {
	limits Limits
	cache  *Cache
}

// NewExpander returns an Expander. A nil cache disables caching.
func NewExpander(limits Limits, cache *Cache) *Expander {
	return &Expander{limits: limits, cache: cache}
}

// Expand validates rule, enforces the span limit and returns the occurrences
// inside window. Cached slices are cloned so callers may modify the result.
func (e *Expander) Expand(ctx context.Context, rule domain.RecurrenceRule, window calendar.Range) ([]calendar.Date, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := e.limits.Check(window); err != nil {
		return nil, err
	}
	return e.expand(ctx, rule, window)
}

// Resync expands rule over window for a goal whose occurrences already cover
// materialized. Those days are re-expanded without counting against the
// limit, so a horizon that grew past it one extension at a time does not
// lock the rule.
func (e *Expander) Resync(ctx context.Context, rule domain.RecurrenceRule, window, materialized calendar.Range) ([]calendar.Date, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := e.limits.CheckFresh(window, materialized); err != nil {
		return nil, err
	}
	return e.expand(ctx, rule, window)
}

func (e *Expander) expand(ctx context.Context, rule domain.RecurrenceRule, window calendar.Range) ([]calendar.Date, error) {
	var key string
	if e.cache != nil {
		key = cacheKey(rrule.Encode(rule), window)
		if dates, ok := e.cache.Get(key); ok {
			return slices.Clone(dates), nil
		}
	}

	dates, err := ExpandContext(ctx, rule, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, slices.Clone(dates))
	}
	return dates, nil
}
