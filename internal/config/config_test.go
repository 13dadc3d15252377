package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.Azure.OpenAI.Enabled())

	assert.Equal(t, 24*time.Hour, cfg.Analytics.DedupWindow)
	assert.Equal(t, 2, cfg.Analytics.InteractionPolicy().Attempts)
	assert.Equal(t, 300*time.Millisecond, cfg.Analytics.InteractionPolicy().BaseDelay)
	assert.Equal(t, 600*time.Millisecond, cfg.Analytics.InteractionPolicy().Delay(3))
	assert.Equal(t, 3, cfg.Analytics.GenerationPolicy().Attempts)
	assert.Equal(t, time.Second, cfg.Analytics.GenerationPolicy().BaseDelay)
	assert.Equal(t, 14*24*time.Hour, cfg.Alerts.AnomalyTTL)
	assert.Equal(t, 60*24*time.Hour, cfg.Alerts.WellnessTTL)
	assert.Equal(t, 30, cfg.Alerts.DefaultSupplyDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Insights.Validity)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/health")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
	t.Setenv("ANALYSIS_DEDUP_WINDOW", "12h")
	t.Setenv("INTERACTION_LOOKUP_RATE", "0.5")
	t.Setenv("ALERT_WELLNESS_TTL", "720h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/health", cfg.Database.URL)
	assert.True(t, cfg.Azure.OpenAI.Enabled())
	assert.Equal(t, 12*time.Hour, cfg.Analytics.DedupWindow)
	assert.InDelta(t, 0.5, cfg.Analytics.LookupRate, 1e-9)
	assert.Equal(t, 30*24*time.Hour, cfg.Alerts.WellnessTTL)
}

func TestLoad_PartialOpenAIConfigRejected(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure.openai.apikey is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server.port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero dedup window", func(c *Config) { c.Analytics.DedupWindow = 0 }, "dedupwindow"},
		{"no retry attempts", func(c *Config) { c.Analytics.GenerationRetryAttempts = 0 }, "retry attempts"},
		{"rate without burst", func(c *Config) { c.Analytics.LookupBurst = 0 }, "lookupburst"},
		{"no concurrency", func(c *Config) { c.Analytics.LookupConcurrency = 0 }, "lookupconcurrency"},
		{"zero ttl", func(c *Config) { c.Alerts.MilestoneTTL = 0 }, "alerts.milestonettl"},
		{"zero validity", func(c *Config) { c.Insights.Validity = 0 }, "insights.validity"},
		{"zero supply", func(c *Config) { c.Alerts.DefaultSupplyDays = 0 }, "defaultsupplydays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
