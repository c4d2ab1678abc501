package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

// resolveGoalID resolves a goal reference which can be:
//   - A full goal ID
//   - A unique ID prefix (the 8 characters shown by `goal list` are enough)
//   - A goal title, matched case-insensitively
func resolveGoalID(ctx context.Context, app *App, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("goal reference is required")
	}
	goals, err := app.Goals.ListGoals(ctx)
	if err != nil {
		return "", err
	}

	var byPrefix, byTitle []string
	for _, g := range goals {
		if g.ID == input {
			return g.ID, nil
		}
		if strings.HasPrefix(g.ID, input) {
			byPrefix = append(byPrefix, g.ID)
		}
		if strings.EqualFold(g.Title, input) {
			byTitle = append(byTitle, g.ID)
		}
	}
	switch {
	case len(byPrefix) == 1:
		return byPrefix[0], nil
	case len(byPrefix) > 1:
		return "", fmt.Errorf("goal prefix %q is ambiguous (%d matches)", input, len(byPrefix))
	case len(byTitle) == 1:
		return byTitle[0], nil
	case len(byTitle) > 1:
		return "", fmt.Errorf("goal title %q is ambiguous (%d matches), use the ID", input, len(byTitle))
	}
	return "", fmt.Errorf("goal %q: %w", input, domain.ErrGoalNotFound)
}

// resolveOccurrence turns command arguments into an occurrence ID. One
// argument is taken as an occurrence ID. Two arguments are GOAL DATE and
// select the visible occurrence on that date.
func resolveOccurrence(ctx context.Context, app *App, args []string) (string, error) {
	switch len(args) {
	case 1:
		return args[0], nil
	case 2:
	default:
		return "", fmt.Errorf("expected OCCURRENCE-ID or GOAL DATE")
	}

	goalID, err := resolveGoalID(ctx, app, args[0])
	if err != nil {
		return "", err
	}
	date, err := parseDateArg(args[1], app.today())
	if err != nil {
		return "", err
	}
	occs, err := app.Goals.OccurrencesInRange(ctx, goalID, calendar.NewRange(date, date))
	if err != nil {
		return "", err
	}
	switch len(occs) {
	case 0:
		return "", fmt.Errorf("nothing scheduled on %s: %w", date, domain.ErrOccurrenceNotFound)
	case 1:
		return occs[0].ID, nil
	default:
		return "", fmt.Errorf("%d occurrences on %s, use an occurrence ID", len(occs), date)
	}
}
