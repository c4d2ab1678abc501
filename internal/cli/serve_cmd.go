package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/cadence/internal/config"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep horizons extended on a schedule",
		Long: `Run in the foreground and extend every goal's horizon on the
extend.schedule cron expression (default @daily), extend.ahead_days past
today. One extension runs at startup. Edits to the config file take effect
without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := newScheduler(ctx, app)
			if err := s.start(app.cfg().Extend); err != nil {
				return err
			}
			defer s.stop()

			if app.Viper != nil {
				config.Watch(app.Viper, app.logger(), func(cfg *config.Config) {
					if err := s.reschedule(cfg.Extend); err != nil {
						app.logger().Warn("keeping previous schedule", "error", err)
					}
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Extending horizons %s, %d days ahead. Ctrl-C to stop.\n",
				app.cfg().Extend.Schedule, app.cfg().Extend.AheadDays)
			s.runNow()
			<-ctx.Done()
			return nil
		},
	}
	return cmd
}

// scheduler owns the cron instance behind `serve`.
type scheduler struct {
	ctx  context.Context
	app  *App
	cron *cron.Cron

	mu      sync.Mutex
	entry   cron.EntryID
	current config.ExtendConfig
}

func newScheduler(ctx context.Context, app *App) *scheduler {
	logger := cronLogger{app.logger()}
	return &scheduler{
		ctx: ctx,
		app: app,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

func (s *scheduler) start(cfg config.ExtendConfig) error {
	if err := s.reschedule(cfg); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// stop waits for a running extension to finish.
func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}

// reschedule swaps the cron entry for cfg. The previous entry stays in place
// when cfg.Schedule does not parse.
func (s *scheduler) reschedule(cfg config.ExtendConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(cfg.Schedule, s.runNow)
	if err != nil {
		return fmt.Errorf("extend.schedule %q: %w", cfg.Schedule, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.current = cfg
	s.app.logger().Info("extend scheduled", "schedule", cfg.Schedule, "ahead_days", cfg.AheadDays)
	return nil
}

func (s *scheduler) runNow() {
	s.mu.Lock()
	ahead := s.current.AheadDays
	s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	_, _ = extendAll(s.ctx, s.app, s.app.today().AddDays(ahead))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
