package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "argus.db", cfg.DBPath)
	assert.Equal(t, 60, cfg.RateLimitRPM)
	assert.Equal(t, 5*time.Second, cfg.ProbeDeadline())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
db_path: /var/lib/argus/argus.db
rate_limit_per_minute: 120
banned_countries: ["XX"]
probe:
  deadline_seconds: 10
  webgl_allowlist:
    - aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/var/lib/argus/argus.db", cfg.DBPath)
	assert.Equal(t, 120, cfg.RateLimitRPM)
	assert.Equal(t, []string{"XX"}, cfg.BannedCountries)
	assert.Equal(t, 10*time.Second, cfg.ProbeDeadline())
	assert.Len(t, cfg.Probe.WebGLAllowlist, 1)
	// Unset fields keep their defaults.
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.Probe.AudioStaggerMillis)*time.Millisecond)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	// Defaults still come back so callers can fall back explicitly.
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ARGUS_ADDR", ":7070")
	t.Setenv("ARGUS_SECRET", "s3cret")

	cfg := DefaultConfig()
	cfg.FromEnv()
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "argus.db", cfg.DBPath)
}
