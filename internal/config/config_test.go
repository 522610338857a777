package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARGUS_DB_PATH", filepath.Join(t.TempDir(), "argus.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8001", cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.Equal(t, 2*time.Minute, cfg.ThreatTimeout)
	assert.Equal(t, 0.5, cfg.KPIThreshold)
	assert.Equal(t, 1, cfg.TuneIncrement)
	assert.Equal(t, 5, cfg.TuneMaxRetries)
	assert.Empty(t, cfg.ComplianceURL)
	assert.False(t, cfg.ResolveHostnames)
	assert.Empty(t, cfg.HostOverrides)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARGUS_DB_PATH", filepath.Join(t.TempDir(), "argus.db"))
	t.Setenv("ARGUS_ENV", "production")
	t.Setenv("ARGUS_HTTP_PORT", "9000")
	t.Setenv("ARGUS_TICK_INTERVAL", "10s")
	t.Setenv("ARGUS_KPI_THRESHOLD", "0.3")
	t.Setenv("ARGUS_TUNE_MAX_RETRIES", "2")
	t.Setenv("ARGUS_HOST_OVERRIDES", "rate_limiting=edge1,dns_rate_limiting=dns9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, 0.3, cfg.KPIThreshold)
	assert.Equal(t, 2, cfg.TuneMaxRetries)
	assert.Equal(t, map[string]string{"rate_limiting": "edge1", "dns_rate_limiting": "dns9"}, cfg.HostOverrides)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ARGUS_DB_PATH", filepath.Join(t.TempDir(), "argus.db"))
	t.Setenv("ARGUS_TICK_INTERVAL", "often")
	t.Setenv("ARGUS_TUNE_MAX_RETRIES", "lots")
	t.Setenv("ARGUS_HOST_OVERRIDES", "garbage,=nohost,ok=yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.Equal(t, 5, cfg.TuneMaxRetries)
	assert.Equal(t, map[string]string{"ok": "yes"}, cfg.HostOverrides)
}
