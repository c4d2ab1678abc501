package domain

import (
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/samber/mo"
	"golang.org/x/text/unicode/norm"
)

type Goal struct {
	ID          string
	Title       string
	Description string
	Rule        *RecurrenceRule

	// Horizon is the last date through which occurrences are materialized.
	Horizon calendar.Date

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeText trims surrounding whitespace and converts s to Unicode NFC so
// visually identical titles and notes compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// GoalPatch edits a goal's descriptive fields. An empty description clears
// it; an empty title is rejected.
type GoalPatch struct {
	Title       mo.Option[string]
	Description mo.Option[string]
}

func (p GoalPatch) Empty() bool {
	return p.Title.IsAbsent() && p.Description.IsAbsent()
}

// Apply normalizes the patched fields and writes them to g. Returns whether
// anything changed; g is untouched on error.
func (g *Goal) Apply(p GoalPatch, now time.Time) (bool, error) {
	title, desc := g.Title, g.Description
	if v, ok := p.Title.Get(); ok {
		if title = NormalizeText(v); title == "" {
			return false, ErrTitleRequired
		}
	}
	if v, ok := p.Description.Get(); ok {
		desc = NormalizeText(v)
	}
	if title == g.Title && desc == g.Description {
		return false, nil
	}
	g.Title, g.Description = title, desc
	g.UpdatedAt = now
	return true, nil
}
