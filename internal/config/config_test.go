package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/busboard")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, time.Minute, cfg.ProcessInterval)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/busboard")
	t.Setenv("PROCESS_INTERVAL", "15s")
	t.Setenv("OCR_TIMEOUT", "5s")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.ProcessInterval)
	assert.Equal(t, 5*time.Second, cfg.OCRTimeout)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestLoadRulesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)

	assert.InDelta(t, 85.0, rules.MaxSpeedKmh, 1e-9)
	assert.InDelta(t, 0.85, rules.SimilarityThreshold, 1e-9)
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_speed_kmh: 100\nmin_route_km: 2\n"), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, rules.MaxSpeedKmh, 1e-9)
	assert.InDelta(t, 2.0, rules.MinRouteKm, 1e-9)
	// Untouched fields keep their defaults.
	assert.InDelta(t, 20.0, rules.MinSpeedKmh, 1e-9)
}

func TestLoadRulesBadFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
