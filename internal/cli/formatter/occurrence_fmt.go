package formatter

import (
	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

// CalendarItem is one occurrence with its goal's title.
type CalendarItem struct {
	Title      string
	Occurrence domain.Occurrence
}

// OccurrenceTable renders occurrences of a single goal.
func OccurrenceTable(occs []domain.Occurrence, today calendar.Date) string {
	headers := []string{"ID", "DATE", "WHEN", "STATE", "ORIGIN", "NOTES"}
	rows := make([][]string, 0, len(occs))
	for _, o := range occs {
		notes := ""
		if o.Notes != nil {
			notes = truncate(*o.Notes, 40)
		}
		rows = append(rows, []string{
			TruncID(o.ID),
			DayLabel(o.Date),
			RelativeDay(o.Date, today),
			OccurrencePill(o),
			OriginBadge(o.Origin),
			notes,
		})
	}
	return RenderTable(headers, rows)
}

// CalendarTree groups items by date. Items must be sorted by date.
func CalendarTree(items []CalendarItem) string {
	var tree []TreeItem
	for i, it := range items {
		d := it.Occurrence.Date
		// New date heading whenever the date changes.
		if i == 0 || items[i-1].Occurrence.Date != d {
			tree = append(tree, TreeItem{Title: Bold(DayLabel(d))})
		}
		// Plain todo items carry no marker.
		status := OccurrenceState(it.Occurrence)
		if status == "todo" {
			status = ""
		}
		tree = append(tree, TreeItem{
			Title:  it.Title,
			Level:  1,
			IsLast: i == len(items)-1 || items[i+1].Occurrence.Date != d,
			Status: status,
			Detail: it.Occurrence.ID[:min(8, len(it.Occurrence.ID))],
		})
	}
	return RenderTree(tree)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
