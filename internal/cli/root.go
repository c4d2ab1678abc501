package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/config"
	"github.com/alexanderramin/cadence/internal/service"
)

// App holds what CLI commands need: the recurrence service plus the loaded
// configuration.
type App struct {
	Goals service.RecurrenceService

	Config     *config.Config
	ConfigPath string
	// Viper backs config watching in `serve`; nil disables it.
	Viper  *viper.Viper
	Logger *slog.Logger

	// Location decides what "today" is. Nil means time.Local.
	Location *time.Location
	// Now is overridden by tests.
	Now func() time.Time

	// IsInteractive reports whether stdin is a terminal. Wizards and
	// spinners only run when it returns true.
	IsInteractive func() bool
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) today() calendar.Date {
	loc := a.Location
	if loc == nil {
		loc = time.Local
	}
	return calendar.FromTime(a.now().In(loc))
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

func (a *App) cfg() *config.Config {
	if a.Config == nil {
		return config.Default()
	}
	return a.Config
}

// retry runs op under the configured retry policy.
func (a *App) retry(ctx context.Context, op func() error) error {
	return withRetry(ctx, a.cfg().Retry.MaxElapsed, op)
}

// NewRootCmd creates the top-level "cadence" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "cadence",
		Short:         "Recurring goals with materialized occurrences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Parsed early by main; declared here so cobra accepts it.
	root.PersistentFlags().String("config", "", "config file (default ~/.cadence/config.yaml)")

	root.AddCommand(
		newGoalCmd(app),
		newOccurrenceCmd(app),
		newCalendarCmd(app),
		newExportCmd(app),
		newImportCmd(app),
		newExtendCmd(app),
		newServeCmd(app),
		newConfigCmd(app),
	)

	return root
}
