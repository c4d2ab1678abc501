package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/cli/formatter"
)

func newExtendCmd(app *App) *cobra.Command {
	var ahead int
	var through string

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Materialize occurrences further into the future",
		Long: `Push every goal's horizon forward so occurrences exist through the
given date. Goals already materialized that far are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			today := app.today()
			if ahead <= 0 {
				ahead = app.cfg().Extend.AheadDays
			}
			horizon := today.AddDays(ahead)
			if through != "" {
				var err error
				if horizon, err = parseDateArg(through, today); err != nil {
					return fmt.Errorf("--through: %w", err)
				}
			}

			n, err := extendAll(ctx, app, horizon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extended %d goal(s) through %s\n", n, formatter.DayLabel(horizon))
			return nil
		},
	}

	cmd.Flags().IntVar(&ahead, "ahead", 0, "Days past today (default extend.ahead_days)")
	cmd.Flags().StringVar(&through, "through", "", "Explicit horizon date; overrides --ahead")
	cmd.MarkFlagsMutuallyExclusive("ahead", "through")
	return cmd
}

// extendAll runs ExtendAll under the retry policy and logs the outcome.
func extendAll(ctx context.Context, app *App, horizon calendar.Date) (int, error) {
	var n int
	err := app.retry(ctx, func() error {
		var extErr error
		n, extErr = app.Goals.ExtendAll(ctx, horizon)
		return extErr
	})
	if err != nil {
		app.logger().Error("extend failed", "horizon", horizon.String(), "error", err)
		return n, err
	}
	app.logger().Info("extend finished", "horizon", horizon.String(), "extended", n)
	return n, nil
}
