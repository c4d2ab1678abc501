package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

// Predefined lipgloss styles.
var (
	StyleGreen      = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow     = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleYellowBold = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StyleRed        = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue       = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple     = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim        = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg         = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader     = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold       = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// OccurrenceState classifies an occurrence for display.
func OccurrenceState(o domain.Occurrence) string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.Completed:
		return "done"
	case !o.OriginalDate.IsZero() && o.OriginalDate != o.Date:
		return "moved"
	default:
		return "todo"
	}
}

// OccurrencePill returns a colored state indicator such as "✔ Done".
func OccurrencePill(o domain.Occurrence) string {
	switch OccurrenceState(o) {
	case "done":
		return StyleGreen.Render("✔ Done")
	case "moved":
		return StyleYellow.Render("↷ Moved")
	case "skipped":
		return StyleDim.Render("⊘ Skipped")
	default:
		return StyleBlue.Render("○ Todo")
	}
}

// OriginBadge marks user-edited occurrences.
func OriginBadge(o domain.Origin) string {
	if o == domain.OriginException {
		return StylePurple.Render("edited")
	}
	return Dim("rule")
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len([]rune(upper)))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

// Dim renders text in the muted/dim color.
func Dim(text string) string {
	return StyleDim.Render(text)
}

// Bold renders text in bold with the foreground color.
func Bold(text string) string {
	return StyleBold.Render(text)
}
