package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "webpilot", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 0.2, cfg.Scoring.AcceptanceThreshold)
	assert.Equal(t, 2, cfg.Scoring.MaxFuzzyDistance)
	assert.Equal(t, 3, cfg.Executor.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Executor.BackoffBase)
	assert.Equal(t, 4, cfg.Engine.ParallelLimit)
	assert.Equal(t, "file", cfg.Store.Backend)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Scoring.AcceptanceThreshold = 1.5 },
			wantErr: "acceptance_threshold",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Executor.MaxRetries = 0 },
			wantErr: "max_retries",
		},
		{
			name:    "negative backoff",
			mutate:  func(c *Config) { c.Executor.BackoffBase = -time.Second },
			wantErr: "backoff_base",
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "redis" },
			wantErr: "store.backend",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: "WEBPILOT_POSTGRES_URL",
		},
		{
			name:    "llm without key",
			mutate:  func(c *Config) { c.Intent.LLMEnabled = true },
			wantErr: "WEBPILOT_GEMINI_API_KEY",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("scoring.acceptance_threshold", 0.35)
	v.Set("executor.max_retries", 5)
	v.Set("browser.headless", false)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 0.35, cfg.Scoring.AcceptanceThreshold)
	assert.Equal(t, 5, cfg.Executor.MaxRetries)
	assert.False(t, cfg.Browser.Headless)
}
