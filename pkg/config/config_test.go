package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaults tests the documented default values
func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5*time.Second, cfg.Scheduler.Delay)
	assert.Equal(t, 500, cfg.Scheduler.MaxNewJobExes)
	assert.Equal(t, time.Second, cfg.Scheduler.ScheduleLoopWarnThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.ScheduleQueryWarnThreshold)
	assert.Equal(t, 5, cfg.Scheduler.Retry.MaxTries)
	assert.Equal(t, 1000*time.Millisecond, cfg.Scheduler.Retry.BaseDelay)
	assert.Equal(t, 5000*time.Millisecond, cfg.Scheduler.Retry.MaxDelay)
	assert.Equal(t, "bolt", cfg.Store.Backend)
	require.NoError(t, cfg.Validate())
}

// TestLoadFile tests YAML file loading over the defaults
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
scheduler:
  delay: 2s
  max_new_job_exes: 100
store:
  backend: postgres
  dsn: postgres://localhost/stevedore
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Scheduler.Delay)
	assert.Equal(t, 100, cfg.Scheduler.MaxNewJobExes)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched fields keep their defaults
	assert.Equal(t, 5, cfg.Scheduler.Retry.MaxTries)
}

// TestEnvOverrides tests STEVEDORE_* environment overrides
func TestEnvOverrides(t *testing.T) {
	t.Setenv("STEVEDORE_DELAY", "10s")
	t.Setenv("STEVEDORE_MAX_NEW_JOB_EXES", "42")
	t.Setenv("STEVEDORE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Scheduler.Delay)
	assert.Equal(t, 42, cfg.Scheduler.MaxNewJobExes)
	assert.Equal(t, "warn", cfg.Log.Level)
}

// TestValidate tests rejection of unusable configurations
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero delay", func(c *Config) { c.Scheduler.Delay = 0 }},
		{"negative cap", func(c *Config) { c.Scheduler.MaxNewJobExes = -1 }},
		{"zero retries", func(c *Config) { c.Scheduler.Retry.MaxTries = 0 }},
		{"base above max", func(c *Config) {
			c.Scheduler.Retry.BaseDelay = 10 * time.Second
			c.Scheduler.Retry.MaxDelay = time.Second
		}},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres"; c.Store.DSN = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
