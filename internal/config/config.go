package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything argusd and argusprobe need at startup.
type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`
	DBPath         string   `yaml:"db_path"`
	RedisAddr      string   `yaml:"redis_addr"`
	GeoIPPath      string   `yaml:"geoip_path"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimitRPM   int      `yaml:"rate_limit_per_minute"`
	// BannedCountries is the ISO country deny list; only consulted when a
	// GeoIP database is configured.
	BannedCountries []string `yaml:"banned_countries"`

	Probe ProbeConfig `yaml:"probe"`
}

// ProbeConfig tunes the client-side collection pipeline.
type ProbeConfig struct {
	// DeadlineSeconds bounds each modality; a probe that stalls past it
	// resolves to a timeout verdict instead of hanging the session.
	DeadlineSeconds int `yaml:"deadline_seconds"`
	// SettleMillis is the delay before pixel/sample readback for backends
	// without an explicit completion fence.
	SettleMillis int `yaml:"settle_ms"`
	// AudioStaggerMillis separates the two offline audio renders.
	AudioStaggerMillis int `yaml:"audio_stagger_ms"`
	// WebGLAllowlist is the known-good red-rectangle hash set. Empty means
	// derive a single entry from the local reference renderer.
	WebGLAllowlist []string `yaml:"webgl_allowlist"`
}

// DefaultConfig returns the built-in defaults, used when no file is given
// and as the base that a loaded file overrides.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":8080",
		DBPath:         "argus.db",
		RedisAddr:      "",
		GeoIPPath:      "",
		JWTSecret:      "",
		AllowedOrigins: []string{"*"},
		RateLimitRPM:   60,
		Probe: ProbeConfig{
			DeadlineSeconds:    5,
			SettleMillis:       0,
			AudioStaggerMillis: 100,
		},
	}
}

// Load reads path over the defaults. A missing file is an error so
// callers can decide to fall back to DefaultConfig explicitly.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv applies environment overrides on top of cfg, mirroring how the
// service is deployed behind a process manager.
func (c *Config) FromEnv() {
	if v := os.Getenv("ARGUS_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("ARGUS_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ARGUS_REDIS"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("ARGUS_SECRET"); v != "" {
		c.JWTSecret = v
	}
}

// ProbeDeadline returns the per-modality deadline as a duration.
func (c *Config) ProbeDeadline() time.Duration {
	if c.Probe.DeadlineSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Probe.DeadlineSeconds) * time.Second
}
