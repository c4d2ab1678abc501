package cli

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/rrule"
	"github.com/alexanderramin/cadence/internal/service"
)

// upcomingLimit is how many future occurrences `goal show` lists.
const upcomingLimit = 5

func newGoalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goal",
		Aliases: []string{"goals", "g"},
		Short:   "Manage recurring goals",
	}

	cmd.AddCommand(
		newGoalAddCmd(app),
		newGoalListCmd(app),
		newGoalShowCmd(app),
		newGoalEditCmd(app),
		newGoalRuleCmd(app),
		newGoalRemoveCmd(app),
	)

	return cmd
}

// goalInput collects the fields of a new goal from flags or the wizard.
type goalInput struct {
	title    string
	desc     string
	freq     string
	every    int
	weekdays domain.WeekdaySet
	monthDay int
	start    string
	count    int
	until    string
	horizon  string
}

// request validates the input and turns it into a service request. Date
// fields accept everything parseDateArg does.
func (in goalInput) request(today calendar.Date) (service.CreateGoalRequest, error) {
	title := strings.TrimSpace(in.title)
	if title == "" {
		return service.CreateGoalRequest{}, fmt.Errorf("title is required")
	}
	freq, err := domain.ParseFrequency(in.freq)
	if err != nil {
		return service.CreateGoalRequest{}, err
	}

	anchor := today
	if in.start != "" {
		if anchor, err = parseDateArg(in.start, today); err != nil {
			return service.CreateGoalRequest{}, fmt.Errorf("start: %w", err)
		}
	}

	rule := domain.RecurrenceRule{
		Frequency: freq,
		Interval:  in.every,
		Weekdays:  in.weekdays,
		MonthDay:  in.monthDay,
		Anchor:    anchor,
	}.Normalized()

	switch {
	case in.count > 0 && in.until != "":
		return service.CreateGoalRequest{}, fmt.Errorf("count and until are mutually exclusive")
	case in.count > 0:
		rule.Bound = domain.CountBound(in.count)
	case in.until != "":
		until, err := parseDateArg(in.until, today)
		if err != nil {
			return service.CreateGoalRequest{}, fmt.Errorf("until: %w", err)
		}
		rule.Bound = domain.UntilBound(until)
	}
	if err := rule.Validate(); err != nil {
		return service.CreateGoalRequest{}, err
	}

	horizon, err := optionalDate(in.horizon, today)
	if err != nil {
		return service.CreateGoalRequest{}, fmt.Errorf("horizon: %w", err)
	}

	return service.CreateGoalRequest{
		Title:       title,
		Description: strings.TrimSpace(in.desc),
		Rule:        rule,
		Horizon:     horizon,
	}, nil
}

func newGoalAddCmd(app *App) *cobra.Command {
	in := goalInput{freq: string(domain.FreqWeekly), every: 1}
	var interactive bool

	cmd := &cobra.Command{
		Use:   "add [TITLE]",
		Short: "Create a recurring goal",
		Example: `  cadence goal add "Morning run" --freq weekly --on mon,wed,fri --start 2023-05-01
  cadence goal add "Pay rent" --freq monthly --month-day 31 --count 12
  cadence goal add --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				in.title = args[0]
			}
			if interactive {
				if !app.interactive() {
					return fmt.Errorf("--interactive needs a terminal")
				}
				if err := runGoalWizard(ctx, &in, app.today()); err != nil {
					return err
				}
			}

			req, err := in.request(app.today())
			if err != nil {
				return err
			}

			var goal *domain.Goal
			err = app.retry(ctx, func() error {
				var createErr error
				goal, createErr = app.Goals.CreateRecurringGoal(ctx, req)
				return createErr
			})
			if err != nil {
				return err
			}

			app.logger().Debug("goal created", "goal_id", goal.ID, "rule", rrule.EncodeValue(*goal.Rule))
			fmt.Fprintf(cmd.OutOrStdout(), "Created goal %s %s\n  %s through %s\n",
				formatter.TruncID(goal.ID), formatter.Bold(goal.Title),
				goal.Rule.Describe(), goal.Horizon)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.title, "title", "", "Goal title")
	f.StringVar(&in.desc, "desc", "", "Optional description")
	f.StringVar(&in.freq, "freq", in.freq, "Frequency: daily, weekly, monthly or yearly")
	f.IntVar(&in.every, "every", in.every, "Repeat every N periods")
	f.Var(newWeekdaysValue(&in.weekdays), "on", "Weekly only: days such as mon,wed,fri or a preset (weekdays, weekend, everyday)")
	f.IntVar(&in.monthDay, "month-day", 0, "Monthly only: day of month 1-31; months without that day are skipped")
	f.StringVar(&in.start, "start", "", "First date (default today)")
	f.IntVar(&in.count, "count", 0, "Stop after N occurrences")
	f.StringVar(&in.until, "until", "", "Last possible date")
	f.StringVar(&in.horizon, "horizon", "", "Materialize occurrences through this date")
	f.BoolVarP(&interactive, "interactive", "i", false, "Fill in the goal with a form")
	cmd.MarkFlagsMutuallyExclusive("count", "until")

	return cmd
}

func newGoalListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			goals, err := app.Goals.ListGoals(cmd.Context())
			if err != nil {
				return err
			}
			if len(goals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No goals yet. Create one with `cadence goal add`."))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatGoalList(goals))
			return nil
		},
	}
	return cmd
}

func newGoalShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show GOAL",
		Short: "Show a goal with its progress and next occurrences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			goalID, err := resolveGoalID(ctx, app, args[0])
			if err != nil {
				return err
			}
			goal, err := app.Goals.GetGoal(ctx, goalID)
			if err != nil {
				return err
			}

			today := app.today()
			detail := formatter.GoalDetail{Goal: goal, Today: today}
			if goal.Rule != nil {
				window := calendar.NewRange(calendar.Min(goal.Rule.Anchor, today), goal.Horizon)
				occs, err := app.Goals.OccurrencesInRange(ctx, goalID, window)
				if err != nil {
					return err
				}
				for _, o := range occs {
					if o.Date.After(today) {
						if len(detail.Upcoming) < upcomingLimit {
							detail.Upcoming = append(detail.Upcoming, o)
						}
						continue
					}
					detail.Total++
					if o.Completed {
						detail.Done++
					}
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatGoalDetail(detail))
			return nil
		},
	}
	return cmd
}

func newGoalEditCmd(app *App) *cobra.Command {
	var title, desc string

	cmd := &cobra.Command{
		Use:   "edit GOAL",
		Short: "Change a goal's title or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var patch domain.GoalPatch
			if cmd.Flags().Changed("title") {
				patch.Title = mo.Some(title)
			}
			if cmd.Flags().Changed("desc") {
				patch.Description = mo.Some(desc)
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to change: pass --title or --desc")
			}

			goalID, err := resolveGoalID(ctx, app, args[0])
			if err != nil {
				return err
			}
			var goal *domain.Goal
			err = app.retry(ctx, func() error {
				var updateErr error
				goal, updateErr = app.Goals.UpdateGoal(ctx, goalID, patch)
				return updateErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated goal %s: %s\n", formatter.TruncID(goal.ID), formatter.Bold(goal.Title))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&desc, "desc", "", "New description (empty clears it)")
	return cmd
}

func newGoalRuleCmd(app *App) *cobra.Command {
	var start, horizon string

	cmd := &cobra.Command{
		Use:   "rule GOAL RRULE",
		Short: "Replace a goal's recurrence rule",
		Long: `Replace a goal's recurrence rule and resynchronize its occurrences.

RRULE is either a bare value such as "FREQ=WEEKLY;BYDAY=TU,TH", which keeps
the goal's start date unless --start is given, or the full two-line form
with its own DTSTART line.

Completed, annotated and moved occurrences are kept as they are.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			today := app.today()
			goalID, err := resolveGoalID(ctx, app, args[0])
			if err != nil {
				return err
			}
			goal, err := app.Goals.GetGoal(ctx, goalID)
			if err != nil {
				return err
			}

			text := args[1]
			var rule domain.RecurrenceRule
			if strings.Contains(strings.ToUpper(text), "DTSTART") {
				if start != "" {
					return fmt.Errorf("--start conflicts with the DTSTART in the rule")
				}
				rule, err = rrule.Decode(text)
			} else {
				anchor := today
				if goal.Rule != nil {
					anchor = goal.Rule.Anchor
				}
				if start != "" {
					if anchor, err = parseDateArg(start, today); err != nil {
						return fmt.Errorf("--start: %w", err)
					}
				}
				rule, err = rrule.DecodeValue(anchor, text)
			}
			if err != nil {
				return err
			}

			h, err := optionalDate(horizon, today)
			if err != nil {
				return fmt.Errorf("--horizon: %w", err)
			}

			var res *service.SyncResult
			err = app.retry(ctx, func() error {
				var updateErr error
				res, updateErr = app.Goals.UpdateRule(ctx, goalID, rule, h)
				return updateErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s now repeats %s\n", formatter.Bold(goal.Title), rule.Describe())
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatSyncResult(res.Created, res.Deleted, res.Horizon))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "New start date for a bare RRULE value")
	cmd.Flags().StringVar(&horizon, "horizon", "", "New horizon (default keeps the current one)")
	return cmd
}

func newGoalRemoveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm GOAL",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a goal and all its occurrences",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			goalID, err := resolveGoalID(ctx, app, args[0])
			if err != nil {
				return err
			}
			if err := app.retry(ctx, func() error { return app.Goals.DeleteGoal(ctx, goalID) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted goal %s\n", formatter.TruncID(goalID))
			return nil
		},
	}
	return cmd
}
