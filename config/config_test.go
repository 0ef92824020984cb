package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := FromViper(v)

	assert.Equal(t, "8001", cfg.Port)
	assert.Equal(t, 5, cfg.Browser.StepBudget)
	assert.Equal(t, 60*time.Second, cfg.Browser.StepTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrentRuns)
	assert.True(t, cfg.AutoConsent)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Database.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STEP_BUDGET", "3")
	t.Setenv("STEP_TIMEOUT", "15s")
	t.Setenv("HEADLESS", "false")
	t.Setenv("DB_NAME", "autoapply")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Browser.StepBudget)
	assert.Equal(t, 15*time.Second, cfg.Browser.StepTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Database.Enabled())
}

func TestValidate(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	base := FromViper(v)

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero step budget", func(c *AppConfig) { c.Browser.StepBudget = 0 }},
		{"zero step timeout", func(c *AppConfig) { c.Browser.StepTimeout = 0 }},
		{"zero navigation timeout", func(c *AppConfig) { c.Browser.NavigationTimeout = 0 }},
		{"zero concurrency", func(c *AppConfig) { c.MaxConcurrentRuns = 0 }},
		{"zero upload size", func(c *AppConfig) { c.MaxUploadBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
