package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
)

// cadenceHuhTheme returns a huh theme using the formatter palette.
func cadenceHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	// Focused state: orange accent
	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.MultiSelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.ErrorMessage = lipgloss.NewStyle().Foreground(formatter.ColorRed)

	// Blurred state: dimmed
	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

const (
	boundNone  = "forever"
	boundCount = "count"
	boundUntil = "until"
)

// goalWizardState holds the raw form values. huh binds to strings, so
// numbers are converted in apply.
type goalWizardState struct {
	title    string
	desc     string
	freq     string
	every    string
	weekdays []time.Weekday
	monthDay string
	start    string
	bound    string
	count    string
	until    string
}

func newGoalWizardState(in goalInput) *goalWizardState {
	st := &goalWizardState{
		title:    in.title,
		desc:     in.desc,
		freq:     in.freq,
		every:    strconv.Itoa(max(in.every, 1)),
		weekdays: in.weekdays.Days(),
		start:    in.start,
		bound:    boundNone,
		until:    in.until,
	}
	if in.monthDay > 0 {
		st.monthDay = strconv.Itoa(in.monthDay)
	}
	switch {
	case in.count > 0:
		st.bound, st.count = boundCount, strconv.Itoa(in.count)
	case in.until != "":
		st.bound = boundUntil
	}
	return st
}

// apply copies the form values into in.
func (st *goalWizardState) apply(in *goalInput) error {
	in.title = st.title
	in.desc = st.desc
	in.freq = st.freq
	in.start = st.start

	every, err := strconv.Atoi(strings.TrimSpace(st.every))
	if err != nil {
		return fmt.Errorf("repeat every: %w", err)
	}
	in.every = every

	in.weekdays = 0
	in.monthDay = 0
	switch domain.Frequency(st.freq) {
	case domain.FreqWeekly:
		in.weekdays = domain.NewWeekdaySet(st.weekdays...)
	case domain.FreqMonthly:
		if s := strings.TrimSpace(st.monthDay); s != "" {
			if in.monthDay, err = strconv.Atoi(s); err != nil {
				return fmt.Errorf("day of month: %w", err)
			}
		}
	}

	in.count, in.until = 0, ""
	switch st.bound {
	case boundCount:
		if in.count, err = strconv.Atoi(strings.TrimSpace(st.count)); err != nil {
			return fmt.Errorf("count: %w", err)
		}
	case boundUntil:
		in.until = st.until
	}
	return nil
}

func (st *goalWizardState) form(today calendar.Date) *huh.Form {
	dayOptions := make([]huh.Option[time.Weekday], 0, 7)
	for _, d := range calendar.MondayFirst {
		dayOptions = append(dayOptions, huh.NewOption(calendar.ShortName(d), d))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Goal").
				Placeholder("Morning run").
				Value(&st.title).
				Validate(validateRequired),
			huh.NewText().
				Title("Description").
				Lines(2).
				Value(&st.desc),
			huh.NewSelect[string]().
				Title("Repeats").
				Options(huh.NewOptions(
					string(domain.FreqDaily), string(domain.FreqWeekly),
					string(domain.FreqMonthly), string(domain.FreqYearly))...).
				Value(&st.freq),
			huh.NewInput().
				Title("Every N periods").
				Value(&st.every).
				Validate(validatePositiveInt),
		),
		huh.NewGroup(
			huh.NewMultiSelect[time.Weekday]().
				Title("On which days?").
				Description("None selected means the start date's weekday").
				Options(dayOptions...).
				Value(&st.weekdays),
		).WithHideFunc(func() bool { return st.freq != string(domain.FreqWeekly) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Day of month").
				Description("Blank means the start date's day. Months without that day are skipped.").
				Value(&st.monthDay).
				Validate(validateMonthDay),
		).WithHideFunc(func() bool { return st.freq != string(domain.FreqMonthly) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Starts").
				Placeholder(today.String()).
				Value(&st.start).
				Validate(validateOptionalDate(today)),
			huh.NewSelect[string]().
				Title("Ends").
				Options(
					huh.NewOption("Never", boundNone),
					huh.NewOption("After a number of times", boundCount),
					huh.NewOption("On a date", boundUntil),
				).
				Value(&st.bound),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("How many times?").
				Value(&st.count).
				Validate(validatePositiveInt),
		).WithHideFunc(func() bool { return st.bound != boundCount }),
		huh.NewGroup(
			huh.NewInput().
				Title("Last date").
				Value(&st.until).
				Validate(validateOptionalDate(today)),
		).WithHideFunc(func() bool { return st.bound != boundUntil }),
	).WithTheme(cadenceHuhTheme()).WithShowHelp(false)
}

// runGoalWizard prefills a form from in, runs it and writes the answers back.
func runGoalWizard(ctx context.Context, in *goalInput, today calendar.Date) error {
	st := newGoalWizardState(*in)
	if err := st.form(today).RunWithContext(ctx); err != nil {
		return err
	}
	return st.apply(in)
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive whole number")
	}
	return nil
}

func validateMonthDay(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 31 {
		return fmt.Errorf("must be between 1 and 31")
	}
	return nil
}

func validateOptionalDate(today calendar.Date) func(string) error {
	return func(s string) error {
		_, err := optionalDate(s, today)
		return err
	}
}
