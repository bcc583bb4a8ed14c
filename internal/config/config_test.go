package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestDefaultVenueTable(t *testing.T) {
	cfg := DefaultConfig()

	ny, err := cfg.Venue("ny")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", ny.TimeZone)
	assert.Equal(t, 22, ny.ClientID)
	assert.False(t, ny.HasPause)

	jp, err := cfg.Venue("JP")
	require.NoError(t, err)
	assert.Equal(t, 150.0, jp.ExchangeRate)
	assert.True(t, jp.HasPause)

	_, err = cfg.Venue("XX")
	assert.Error(t, err)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `system:
  log_level: "DEBUG"
windows:
  buy_block_min: 5
`
	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	cfg, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.System.LogLevel)
	assert.Equal(t, 5, cfg.Windows.BuyBlockMin)
	// untouched sections keep defaults
	assert.Equal(t, 25, cfg.Gateway.RateLimit)
	assert.Equal(t, 0.0125, cfg.Rules.MaxSpread)
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	os.Setenv("TEST_PLAN_DIR", "/tmp/plans")
	defer os.Unsetenv("TEST_PLAN_DIR")

	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString("files:\n  plan_dir: \"${TEST_PLAN_DIR}\"\n")
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	cfg, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/plans", cfg.Files.PlanDir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.System.LogLevel = "LOUD" }},
		{"no venues", func(c *Config) { c.Venues = nil }},
		{"venue missing timezone", func(c *Config) {
			v := c.Venues["NY"]
			v.TimeZone = ""
			c.Venues["NY"] = v
		}},
		{"venue bad fx rate", func(c *Config) {
			v := c.Venues["JP"]
			v.ExchangeRate = 0
			c.Venues["JP"] = v
		}},
		{"spread out of range", func(c *Config) { c.Rules.MaxSpread = 1.5 }},
		{"positive max daily loss", func(c *Config) { c.Rules.MaxDailyLoss = 0.05 }},
		{"reversal thresholds inverted", func(c *Config) { c.Rules.SellFullReversal = 0.01 }},
		{"zero shutdown grace", func(c *Config) { c.Windows.ShutdownGraceMin = 0 }},
		{"zero plan sync debounce", func(c *Config) { c.Windows.PlanSyncSec = 0 }},
		{"zero rate limit", func(c *Config) { c.Gateway.RateLimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{Field: "rules.max_spread", Value: 2.0, Message: "must be a fraction in (0, 1)"}
	assert.Contains(t, err.Error(), "rules.max_spread")
	assert.Contains(t, err.Error(), "must be a fraction")
}
