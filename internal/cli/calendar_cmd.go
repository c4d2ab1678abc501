package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
)

func newCalendarCmd(app *App) *cobra.Command {
	var from, to string
	var pending bool

	cmd := &cobra.Command{
		Use:     "calendar",
		Aliases: []string{"cal", "agenda"},
		Short:   "Show every goal's occurrences day by day",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			window, err := rangeFlags(from, to, app.today(), defaultListDays)
			if err != nil {
				return err
			}
			entries, err := app.Goals.Calendar(ctx, window)
			if err != nil {
				return err
			}

			items := make([]formatter.CalendarItem, 0, len(entries))
			for _, e := range entries {
				if pending && e.Occurrence.Completed {
					continue
				}
				items = append(items, formatter.CalendarItem{Title: e.Goal.Title, Occurrence: e.Occurrence})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatter.Header("Calendar"))
			fmt.Fprintln(out, formatter.Dim(window.String()))
			if len(items) == 0 {
				fmt.Fprintln(out, formatter.Dim("Nothing scheduled."))
				return nil
			}
			fmt.Fprint(out, formatter.CalendarTree(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First date (default today)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (default 30 days after --from)")
	cmd.Flags().BoolVar(&pending, "pending", false, "Hide completed occurrences")
	return cmd
}
