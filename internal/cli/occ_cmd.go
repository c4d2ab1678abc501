package cli

import (
	"fmt"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
)

// defaultListDays is the span `occ list` and `calendar` show without --to.
const defaultListDays = 30

// occRefUse documents the two ways to name an occurrence.
const occRefUse = "(OCCURRENCE-ID | GOAL DATE)"

func newOccurrenceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "occ",
		Aliases: []string{"occurrence", "o"},
		Short:   "List and edit occurrences",
		Long: `List and edit the dated occurrences of a goal.

An occurrence is named either by its ID or by a goal and date:

  cadence occ done 3f1c9a20-...
  cadence occ done "Morning run" today`,
	}

	cmd.AddCommand(
		newOccListCmd(app),
		newOccDoneCmd(app),
		newOccNoteCmd(app),
		newOccMoveCmd(app),
		newOccRemoveCmd(app),
	)

	return cmd
}

func newOccListCmd(app *App) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:     "list GOAL",
		Aliases: []string{"ls"},
		Short:   "List occurrences of a goal in a date range",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			today := app.today()
			goalID, err := resolveGoalID(ctx, app, args[0])
			if err != nil {
				return err
			}
			window, err := rangeFlags(from, to, today, defaultListDays)
			if err != nil {
				return err
			}
			occs, err := app.Goals.OccurrencesInRange(ctx, goalID, window)
			if err != nil {
				return err
			}
			if len(occs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", formatter.Dim("Nothing scheduled in "+window.String()))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.OccurrenceTable(occs, today))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First date (default today)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (default 30 days after --from)")
	return cmd
}

func newOccDoneCmd(app *App) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done " + occRefUse,
		Short: "Mark an occurrence completed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := domain.OccurrencePatch{Completed: mo.Some(!undo)}
			occ, err := markOccurrence(cmd, app, args, patch)
			if err != nil {
				return err
			}
			verb := "Completed"
			if undo {
				verb = "Reopened"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s on %s\n", verb, formatter.TruncID(occ.ID), formatter.DayLabel(occ.Date))
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Mark as not completed")
	return cmd
}

func newOccNoteCmd(app *App) *cobra.Command {
	var message string
	var clearNotes bool

	cmd := &cobra.Command{
		Use:   "note " + occRefUse,
		Short: "Set or clear an occurrence's notes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearNotes && message == "" {
				return fmt.Errorf("pass --message TEXT or --clear")
			}
			if clearNotes {
				message = ""
			}
			occ, err := markOccurrence(cmd, app, args, domain.OccurrencePatch{Notes: mo.Some(message)})
			if err != nil {
				return err
			}
			if occ.Notes == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared notes on %s\n", formatter.TruncID(occ.ID))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Noted %s: %s\n", formatter.TruncID(occ.ID), *occ.Notes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Note text")
	cmd.Flags().BoolVar(&clearNotes, "clear", false, "Remove the notes")
	cmd.MarkFlagsMutuallyExclusive("message", "clear")
	return cmd
}

func newOccMoveCmd(app *App) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "move " + occRefUse + " --to DATE",
		Short: "Reschedule an occurrence to another date",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			date, err := parseDateArg(to, app.today())
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			id, err := resolveOccurrence(ctx, app, args)
			if err != nil {
				return err
			}
			var occ *domain.Occurrence
			err = app.retry(ctx, func() error {
				var moveErr error
				occ, moveErr = app.Goals.RescheduleOccurrence(ctx, id, date)
				return moveErr
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s from %s to %s\n",
				formatter.TruncID(occ.ID), occ.OriginalDate, formatter.DayLabel(occ.Date))
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "New date")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newOccRemoveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm " + occRefUse,
		Aliases: []string{"skip", "cancel"},
		Short:   "Cancel a single occurrence",
		Long:    "Cancel a single occurrence. The rule will not bring it back.",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveOccurrence(ctx, app, args)
			if err != nil {
				return err
			}
			if err := app.retry(ctx, func() error { return app.Goals.DeleteOccurrence(ctx, id) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", formatter.TruncID(id))
			return nil
		},
	}
	return cmd
}

// markOccurrence resolves args and applies patch under the retry policy.
func markOccurrence(cmd *cobra.Command, app *App, args []string, patch domain.OccurrencePatch) (*domain.Occurrence, error) {
	ctx := cmd.Context()
	id, err := resolveOccurrence(ctx, app, args)
	if err != nil {
		return nil, err
	}
	var occ *domain.Occurrence
	err = app.retry(ctx, func() error {
		var markErr error
		occ, markErr = app.Goals.MarkOccurrence(ctx, id, patch)
		return markErr
	})
	return occ, err
}
