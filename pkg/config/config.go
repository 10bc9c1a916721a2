package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the scheduling loop tunables.
const (
	DefaultDelay                      = 5 * time.Second
	DefaultMaxNewJobExes              = 500
	DefaultScheduleLoopWarnThreshold  = 1 * time.Second
	DefaultScheduleQueryWarnThreshold = 100 * time.Millisecond
	DefaultRetryMaxTries              = 5
	DefaultRetryBaseDelay             = 1000 * time.Millisecond
	DefaultRetryMaxDelay              = 5000 * time.Millisecond
)

// RetryConfig controls the persistence retry envelope used when
// scheduling queued job executions.
type RetryConfig struct {
	MaxTries  int           `yaml:"max_tries"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// SchedulerConfig holds the scheduling loop tunables.
type SchedulerConfig struct {
	Delay                      time.Duration `yaml:"delay"`
	MaxNewJobExes              int           `yaml:"max_new_job_exes"`
	ScheduleLoopWarnThreshold  time.Duration `yaml:"schedule_loop_warn_threshold"`
	ScheduleQueryWarnThreshold time.Duration `yaml:"schedule_query_warn_threshold"`
	Retry                      RetryConfig   `yaml:"retry"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is either "bolt" or "postgres".
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
	// DSN is the Postgres connection string when Backend is "postgres".
	DSN string `yaml:"dsn"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json"`
}

// Config is the full process configuration.
type Config struct {
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Store       StoreConfig     `yaml:"store"`
	Log         LogConfig       `yaml:"log"`
	MetricsAddr string          `yaml:"metrics_addr"`
}

// Default returns a configuration populated with the documented
// defaults.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Delay:                      DefaultDelay,
			MaxNewJobExes:              DefaultMaxNewJobExes,
			ScheduleLoopWarnThreshold:  DefaultScheduleLoopWarnThreshold,
			ScheduleQueryWarnThreshold: DefaultScheduleQueryWarnThreshold,
			Retry: RetryConfig{
				MaxTries:  DefaultRetryMaxTries,
				BaseDelay: DefaultRetryBaseDelay,
				MaxDelay:  DefaultRetryMaxDelay,
			},
		},
		Store: StoreConfig{
			Backend: "bolt",
			DataDir: "/var/lib/stevedore",
		},
		Log: LogConfig{
			Level: "info",
		},
		MetricsAddr: ":9090",
	}
}

// Load reads the YAML file at path (if non-empty), applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the scheduler cannot run
// with.
func (c *Config) Validate() error {
	if c.Scheduler.Delay <= 0 {
		return fmt.Errorf("scheduler delay must be positive, got %s", c.Scheduler.Delay)
	}
	if c.Scheduler.MaxNewJobExes <= 0 {
		return fmt.Errorf("max_new_job_exes must be positive, got %d", c.Scheduler.MaxNewJobExes)
	}
	if c.Scheduler.Retry.MaxTries <= 0 {
		return fmt.Errorf("retry max_tries must be positive, got %d", c.Scheduler.Retry.MaxTries)
	}
	if c.Scheduler.Retry.BaseDelay > c.Scheduler.Retry.MaxDelay {
		return fmt.Errorf("retry base_delay %s exceeds max_delay %s",
			c.Scheduler.Retry.BaseDelay, c.Scheduler.Retry.MaxDelay)
	}
	switch c.Store.Backend {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("postgres backend requires a dsn")
	}
	return nil
}

// applyEnv overrides config fields from STEVEDORE_* environment
// variables. Unparseable values are ignored in favor of the file value.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STEVEDORE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.Delay = d
		}
	}
	if v := os.Getenv("STEVEDORE_MAX_NEW_JOB_EXES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.MaxNewJobExes = n
		}
	}
	if v := os.Getenv("STEVEDORE_SCHEDULE_LOOP_WARN_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.ScheduleLoopWarnThreshold = d
		}
	}
	if v := os.Getenv("STEVEDORE_SCHEDULE_QUERY_WARN_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.ScheduleQueryWarnThreshold = d
		}
	}
	if v := os.Getenv("STEVEDORE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("STEVEDORE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("STEVEDORE_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("STEVEDORE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STEVEDORE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}
