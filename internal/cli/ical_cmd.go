package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/ical"
)

func newExportCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [GOAL...]",
		Short: "Write goals as an iCalendar file",
		Long: `Write goals as an iCalendar (RFC 5545) file. Each goal becomes a
recurring event; cancelled occurrences become EXDATEs and edited ones become
RECURRENCE-ID overrides. With no arguments every goal is exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ids := make([]string, 0, len(args))
			if len(args) == 0 {
				goals, err := app.Goals.ListGoals(ctx)
				if err != nil {
					return err
				}
				for _, g := range goals {
					if g.Rule != nil {
						ids = append(ids, g.ID)
					}
				}
			}
			for _, ref := range args {
				id, err := resolveGoalID(ctx, app, ref)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			entries := make([]ical.Entry, 0, len(ids))
			for _, id := range ids {
				goal, err := app.Goals.GetGoal(ctx, id)
				if err != nil {
					return err
				}
				exceptions, err := app.Goals.Exceptions(ctx, id)
				if err != nil {
					return err
				}
				entries = append(entries, ical.Entry{Goal: *goal, Exceptions: exceptions})
			}

			var w io.Writer = cmd.OutOrStdout()
			toFile := output != "" && output != "-"
			if toFile {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := ical.Encode(w, app.now(), entries...); err != nil {
				return err
			}
			if toFile {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d goal(s) to %s\n", len(entries), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	var horizon string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create goals from an iCalendar file",
		Long: `Create one goal per recurring event in an iCalendar file and replay
its cancelled and edited instances. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := optionalDate(horizon, app.today())
			if err != nil {
				return fmt.Errorf("--horizon: %w", err)
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			entries, err := ical.Decode(r)
			if err != nil {
				return err
			}

			stop := func() {}
			if app.interactive() {
				stop = formatter.StartSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Importing %d goal(s)...", len(entries)))
			}
			results, err := ical.NewImporter(app.Goals).Import(ctx, entries, h)
			stop()

			out := cmd.OutOrStdout()
			for _, res := range results {
				fmt.Fprintf(out, "Imported %s %s (%d edits)\n",
					formatter.TruncID(res.Goal.ID), formatter.Bold(res.Goal.Title), res.Applied)
				for _, d := range res.Unmatched {
					fmt.Fprintf(out, "  %s\n", formatter.Dim("no occurrence on "+d.String()+", edit dropped"))
				}
			}
			if err != nil {
				if len(results) > 0 {
					return errors.Join(fmt.Errorf("stopped after %d of %d goals", len(results), len(entries)), err)
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&horizon, "horizon", "", "Horizon for every imported goal (default from the file)")
	return cmd
}
