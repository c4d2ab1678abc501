package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"

	"github.com/alexanderramin/cadence/internal/cli"
	"github.com/alexanderramin/cadence/internal/config"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/generator"
	"github.com/alexanderramin/cadence/internal/repository"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/alexanderramin/cadence/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	ctx := context.Background()

	cfgPath := configFlag(os.Args[1:])
	cfg, v, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	// Plain output when piped so tables and exports stay greppable.
	if !isTerminal(os.Stdout) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	// Open database
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	providers, err := telemetry.Init(ctx, telemetry.Settings{
		Enabled:  cfg.Telemetry.Enabled,
		Stdout:   cfg.Telemetry.Stdout,
		Endpoint: cfg.Telemetry.Endpoint,
		Version:  version,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, providers.Shutdown(shutdownCtx))
	}()

	cache := generator.NewCache(generator.CacheConfig{TTL: cfg.Cache.TTL, MaxEntries: cfg.Cache.MaxEntries})
	if _, err := telemetry.RegisterCacheMetrics(providers.MeterProvider, cache); err != nil {
		return fmt.Errorf("registering cache metrics: %w", err)
	}
	expander := generator.NewExpander(generator.Limits{MaxSpanDays: cfg.Horizon.MaxSpanDays}, cache)

	observers := []service.UseCaseObserver{}
	if cfg.Telemetry.Enabled {
		obs, err := telemetry.NewUseCaseObserver(providers.TracerProvider, providers.MeterProvider)
		if err != nil {
			return fmt.Errorf("creating use case observer: %w", err)
		}
		observers = append(observers, obs)
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		observers = append(observers, service.NewSlogUseCaseObserver(logger))
	}

	// Wire repositories and the service
	goals := service.NewRecurrenceService(
		repository.NewSQLiteGoalRepo(database),
		repository.NewSQLiteOccurrenceRepo(database),
		db.NewSQLiteUnitOfWork(database),
		expander,
		service.RecurrenceConfig{
			DefaultHorizonDays: cfg.Horizon.DefaultDays,
			OperationTimeout:   cfg.Timeouts.Operation,
			Parallelism:        cfg.Extend.Parallelism,
		},
		observers...,
	)

	app := &cli.App{
		Goals:      goals,
		Config:     cfg,
		ConfigPath: v.ConfigFileUsed(),
		Viper:      v,
		Logger:     logger,
		IsInteractive: func() bool {
			return isTerminal(os.Stdin)
		},
	}

	// Execute root command
	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

// configFlag pulls --config out of args before cobra runs, since the
// config decides how everything else is wired.
func configFlag(args []string) string {
	fs := pflag.NewFlagSet("cadence", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *path
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
