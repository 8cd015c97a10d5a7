package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "127.0.0.1", cfg.Broker.Host)
	assert.Equal(t, "7497", cfg.Broker.Port)
	assert.Equal(t, 10, cfg.Strategy.CooldownDays)
	assert.InDelta(t, 0.05, cfg.Strategy.StopLossPercent, 1e-9)
	assert.InDelta(t, 0.3, cfg.Strategy.CapitalRatio, 1e-9)
	assert.Equal(t, 20, cfg.Strategy.MaxPositions)
	assert.Equal(t, 5, cfg.Strategy.DaysRange)
	assert.True(t, cfg.Strategy.ExcludeOTC)
	assert.Equal(t, 4*time.Hour, cfg.RunInterval)
	assert.Equal(t, "8087", cfg.APIPort)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("COOLDOWN_DAYS", "5")
	t.Setenv("MAX_POSITIONS", "8")
	t.Setenv("RUN_INTERVAL", "30m")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/reversal")
	t.Setenv("EXCLUDE_OTC", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 5, cfg.Strategy.CooldownDays)
	assert.Equal(t, 8, cfg.Strategy.MaxPositions)
	assert.Equal(t, 30*time.Minute, cfg.RunInterval)
	assert.True(t, cfg.Database.Enabled())
	assert.False(t, cfg.Strategy.ExcludeOTC)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown env", "ENV", "qa"},
		{"capital ratio above one", "CAPITAL_RATIO", "1.5"},
		{"stop loss of one", "STOP_LOSS_PERCENT", "1.0"},
		{"zero max positions", "MAX_POSITIONS", "0"},
		{"negative days range", "DAYS_RANGE", "-1"},
		{"zero fill poll attempts", "FILL_POLL_ATTEMPTS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsOverallocation(t *testing.T) {
	t.Setenv("LONG_ALLOCATION_RATIO", "0.7")
	t.Setenv("SHORT_ALLOCATION_RATIO", "0.6")

	_, err := Load()
	assert.Error(t, err)
}

func TestMalformedEnvValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("COOLDOWN_DAYS", "ten")
	t.Setenv("STOP_LOSS_PERCENT", "five percent")
	t.Setenv("RUN_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Strategy.CooldownDays)
	assert.InDelta(t, 0.05, cfg.Strategy.StopLossPercent, 1e-9)
	assert.Equal(t, 4*time.Hour, cfg.RunInterval)
}

func TestCooldownDuration(t *testing.T) {
	s := StrategyConfig{CooldownDays: 10}
	assert.Equal(t, 240*time.Hour, s.Cooldown())
}
