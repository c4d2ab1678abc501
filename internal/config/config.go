// Package config loads cadence settings from defaults, an optional YAML file
// and CADENCE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "CADENCE"

// Keys as they appear in the YAML file. Environment variables use the upper
// case form with dots replaced by underscores: horizon.default_days is
// CADENCE_HORIZON_DEFAULT_DAYS.
const (
	KeyDBPath             = "db_path"
	KeyHorizonDefaultDays = "horizon.default_days"
	KeyHorizonMaxSpanDays = "horizon.max_span_days"
	KeyTimeoutOperation   = "timeouts.operation"
	KeyRetryMaxElapsed    = "retry.max_elapsed"
	KeyCacheTTL           = "cache.ttl"
	KeyCacheMaxEntries    = "cache.max_entries"
	KeyExtendSchedule     = "extend.schedule"
	KeyExtendAheadDays    = "extend.ahead_days"
	KeyExtendParallelism  = "extend.parallelism"
	KeyLogLevel           = "log.level"
	KeyLogFormat          = "log.format"
	KeyTelemetryEnabled   = "telemetry.enabled"
	KeyTelemetryStdout    = "telemetry.stdout"
	KeyTelemetryEndpoint  = "telemetry.endpoint"
)

type Config struct {
	DBPath    string          `yaml:"db_path" mapstructure:"db_path"`
	Horizon   HorizonConfig   `yaml:"horizon" mapstructure:"horizon"`
	Timeouts  TimeoutConfig   `yaml:"timeouts" mapstructure:"timeouts"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Extend    ExtendConfig    `yaml:"extend" mapstructure:"extend"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

type HorizonConfig struct {
	DefaultDays int `yaml:"default_days" mapstructure:"default_days"`
	MaxSpanDays int `yaml:"max_span_days" mapstructure:"max_span_days"`
}

type TimeoutConfig struct {
	Operation time.Duration `yaml:"operation" mapstructure:"operation"`
}

type RetryConfig struct {
	MaxElapsed time.Duration `yaml:"max_elapsed" mapstructure:"max_elapsed"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
}

// ExtendConfig drives the background horizon extension run by `cadence serve`.
type ExtendConfig struct {
	Schedule    string `yaml:"schedule" mapstructure:"schedule"`
	AheadDays   int    `yaml:"ahead_days" mapstructure:"ahead_days"`
	Parallelism int    `yaml:"parallelism" mapstructure:"parallelism"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Stdout   bool   `yaml:"stdout" mapstructure:"stdout"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// Dir returns ~/.cadence, the home of the default config file and database.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cadence"
	}
	return filepath.Join(home, ".cadence")
}

// DefaultPath is where the config file lives unless --config says otherwise.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath: filepath.Join(Dir(), "cadence.db"),
		Horizon: HorizonConfig{
			DefaultDays: 365,
			MaxSpanDays: 3660,
		},
		Timeouts:  TimeoutConfig{Operation: 30 * time.Second},
		Retry:     RetryConfig{MaxElapsed: 10 * time.Second},
		Cache:     CacheConfig{TTL: 15 * time.Minute, MaxEntries: 1000},
		Extend:    ExtendConfig{Schedule: "@daily", AheadDays: 90, Parallelism: 4},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyDBPath, d.DBPath)
	v.SetDefault(KeyHorizonDefaultDays, d.Horizon.DefaultDays)
	v.SetDefault(KeyHorizonMaxSpanDays, d.Horizon.MaxSpanDays)
	v.SetDefault(KeyTimeoutOperation, d.Timeouts.Operation)
	v.SetDefault(KeyRetryMaxElapsed, d.Retry.MaxElapsed)
	v.SetDefault(KeyCacheTTL, d.Cache.TTL)
	v.SetDefault(KeyCacheMaxEntries, d.Cache.MaxEntries)
	v.SetDefault(KeyExtendSchedule, d.Extend.Schedule)
	v.SetDefault(KeyExtendAheadDays, d.Extend.AheadDays)
	v.SetDefault(KeyExtendParallelism, d.Extend.Parallelism)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
	v.SetDefault(KeyTelemetryEnabled, d.Telemetry.Enabled)
	v.SetDefault(KeyTelemetryStdout, d.Telemetry.Stdout)
	v.SetDefault(KeyTelemetryEndpoint, d.Telemetry.Endpoint)
}

// NewViper returns a viper instance bound to path (DefaultPath when empty)
// and the CADENCE_* environment. It does not read the file.
func NewViper(path string) *viper.Viper {
	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path if it exists and returns the merged,
// validated configuration. A missing file is not an error.
func Load(path string) (*Config, *viper.Viper, error) {
	v := NewViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
		}
	}
	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Decode unmarshals the current viper state and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyDBPath))
	}
	if c.Horizon.DefaultDays < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyHorizonDefaultDays, c.Horizon.DefaultDays))
	}
	if c.Horizon.MaxSpanDays < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %d", KeyHorizonMaxSpanDays, c.Horizon.MaxSpanDays))
	}
	if c.Horizon.MaxSpanDays > 0 && c.Horizon.DefaultDays >= c.Horizon.MaxSpanDays {
		errs = append(errs, fmt.Errorf("%s (%d) must be below %s (%d)", KeyHorizonDefaultDays, c.Horizon.DefaultDays, KeyHorizonMaxSpanDays, c.Horizon.MaxSpanDays))
	}
	if c.Timeouts.Operation < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyTimeoutOperation))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyCacheMaxEntries))
	}
	if _, err := cron.ParseStandard(c.Extend.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyExtendSchedule, err))
	}
	if c.Extend.AheadDays < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyExtendAheadDays, c.Extend.AheadDays))
	}
	if c.Extend.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyExtendParallelism, c.Extend.Parallelism))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.Log.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel parses log.level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return level, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Save writes cfg to path as YAML through a temp file and rename, leaving
// the file with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cadence-config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting config permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// Watch re-decodes the config whenever the file changes and hands valid
// results to onChange. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, logger *slog.Logger, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "op", e.Op.String(), "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
}
