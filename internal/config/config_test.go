package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/papertrade/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.PriceTickInterval)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, "X-Player-ID", cfg.PlayerHeader)
	assert.Equal(t, "100000", cfg.InitialCapital.String())
	assert.True(t, cfg.SeedStocks)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PRICE_TICK_INTERVAL", "250ms")
	t.Setenv("INITIAL_CAPITAL", "5000.50")
	t.Setenv("SEED_STOCKS", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.PriceTickInterval)
	assert.Equal(t, "5000.5", cfg.InitialCapital.String())
	assert.False(t, cfg.SeedStocks)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	content := "NATS_URL=nats://broker:4222\nPLAYER_HEADER=X-User\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "nats://broker:4222", cfg.NatsURL)
	assert.Equal(t, "X-User", cfg.PlayerHeader)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"zero interval":     {"PRICE_TICK_INTERVAL": "0s"},
		"negative capital":  {"INITIAL_CAPITAL": "-1"},
		"zero capital":      {"INITIAL_CAPITAL": "0"},
		"malformed capital": {"INITIAL_CAPITAL": "lots"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load(t.TempDir())
			assert.Error(t, err)
		})
	}
}
