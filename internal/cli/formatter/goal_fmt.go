package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/rrule"
)

// GoalDetail holds what the goal show view renders.
type GoalDetail struct {
	Goal     *domain.Goal
	Upcoming []domain.Occurrence
	Done     int
	Total    int
	Today    calendar.Date
}

// GoalTable renders goals as a table of id, title, rule and horizon.
func GoalTable(goals []*domain.Goal) string {
	headers := []string{"ID", "TITLE", "REPEATS", "HORIZON"}
	rows := make([][]string, 0, len(goals))
	for _, g := range goals {
		repeats := Dim("--")
		if g.Rule != nil {
			repeats = g.Rule.Describe()
		}
		rows = append(rows, []string{
			TruncID(g.ID),
			Bold(g.Title),
			repeats,
			g.Horizon.String(),
		})
	}
	return RenderTable(headers, rows)
}

// FormatGoalList renders the goal table inside a bordered box.
func FormatGoalList(goals []*domain.Goal) string {
	return RenderBox("Goals", GoalTable(goals))
}

// FormatGoalDetail renders one goal with its rule, completion bar and the
// next few occurrences.
func FormatGoalDetail(d GoalDetail) string {
	g := d.Goal
	var b strings.Builder

	// Title block.
	b.WriteString(StyleBold.Render(g.Title) + "\n")
	if g.Description != "" {
		b.WriteString(Dim(g.Description) + "\n")
	}
	b.WriteString("\n")

	// Labelled fields, labels padded to a fixed column.
	field := func(label, value string) {
		fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render(fmt.Sprintf("%-8s", label)), value)
	}
	field("ID", TruncID(g.ID))
	if g.Rule != nil {
		field("REPEATS", StyleFg.Render(g.Rule.Describe()))
		field("RRULE", Dim(rrule.EncodeValue(*g.Rule)))
	}
	field("HORIZON", StyleFg.Render(g.Horizon.String()))
	field("DONE", fmt.Sprintf("%s  %d/%d", RenderProgress(CompletionRatio(d.Done, d.Total), 20), d.Done, d.Total))

	// Upcoming occurrences with relative day hints.
	if len(d.Upcoming) > 0 {
		b.WriteString("\n" + Header("Upcoming") + "\n")
		for _, o := range d.Upcoming {
			fmt.Fprintf(&b, "%s  %s  %s\n", DayLabel(o.Date), OccurrencePill(o), Dim(RelativeDay(o.Date, d.Today)))
		}
	}
	return RenderBox("", strings.TrimRight(b.String(), "\n"))
}

// FormatSyncResult summarizes a rule change or extension.
func FormatSyncResult(created, deleted int, horizon calendar.Date) string {
	return fmt.Sprintf("%s created, %s removed, materialized through %s",
		StyleGreen.Render(fmt.Sprint(created)),
		StyleRed.Render(fmt.Sprint(deleted)),
		Bold(horizon.String()))
}
