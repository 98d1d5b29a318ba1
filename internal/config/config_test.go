package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitsweep/pkg/sweep"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DIGITSWEEP_ENDPOINT", "")
	t.Setenv("DIGITSWEEP_DSN", "")
	t.Setenv("DIGITSWEEP_STORE", "")
}

// withEndpoint is the default config pointed at a local service.
func withEndpoint() *Config {
	cfg := DefaultConfig()
	cfg.Oracle.Endpoint = "http://localhost:8080/verify"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Oracle.Endpoint)
	assert.Empty(t, cfg.Oracle.Headers)
	assert.ErrorContains(t, cfg.Validate(), "oracle endpoint not configured")

	cfg = withEndpoint()
	require.NoError(t, cfg.Validate())

	engine, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, sweep.Config{
		Mode:           sweep.ModeSingle,
		PartitionCount: 1,
		Delay:          4 * time.Second,
		IdlePause:      30 * time.Second,
	}, engine)

	assert.Equal(t, 60*time.Second, cfg.GetRateLimitWait(sweep.ModeSingle))
	assert.Equal(t, 300*time.Second, cfg.GetRateLimitWait(sweep.ModeMulti))
	assert.Equal(t, 10*time.Second, cfg.GetStatusInterval())
	assert.Equal(t, 30*time.Second, cfg.GetOracleTimeout())
}

func TestExampleConfigLoads(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "digitsweep.example.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.NotEmpty(t, cfg.Oracle.Endpoint)
	assert.NotEmpty(t, cfg.Oracle.Headers["X-Time-Badge"])
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "AiONdatabase.json", cfg.Store.Path)
	assert.Equal(t, "digitsweep:", cfg.Store.Prefix)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "digitsweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sweep:
  mode: multi
  workers: 4
  delay: "2"
store:
  backend: sqlite
  path: results.db
oracle:
  endpoint: http://localhost:8080/verify
  rate_limit_wait: 90s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	engine, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, sweep.ModeMulti, engine.Mode)
	assert.Equal(t, 4, engine.PartitionCount)
	assert.Equal(t, 2*time.Second, engine.Delay)
	assert.Equal(t, 30*time.Second, engine.IdlePause)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "sweep_results", cfg.Store.Table)
	assert.Equal(t, 90*time.Second, cfg.GetRateLimitWait(sweep.ModeMulti))
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := withEndpoint()
	cfg.Oracle.Headers["X-Time-Badge"] = "badge"
	cfg.Store.Backend = "redis"
	cfg.Store.DSN = "redis://localhost:6379/0"
	cfg.Metrics.Addr = ":9090"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.True(t, Exists(path))
	assert.False(t, Exists(filepath.Join(t.TempDir(), "none.yaml")))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DIGITSWEEP_ENDPOINT", "http://localhost:8080/verify")
	t.Setenv("DIGITSWEEP_DSN", "postgres://localhost/sweep")
	t.Setenv("DIGITSWEEP_STORE", "/tmp/other.json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/verify", cfg.Oracle.Endpoint)
	assert.Equal(t, "postgres://localhost/sweep", cfg.Store.DSN)
	assert.Equal(t, "/tmp/other.json", cfg.Store.Path)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sweep: [unterminated"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Sweep.Mode = "triple" }},
		{"zero workers", func(c *Config) { c.Sweep.Mode = "multi"; c.Sweep.Workers = 0 }},
		{"negative delay", func(c *Config) { c.Sweep.Delay = "-1s" }},
		{"bad delay", func(c *Config) { c.Sweep.Delay = "4x" }},
		{"width too large", func(c *Config) { c.Sweep.MaxWidth = 12 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"file without path", func(c *Config) { c.Store.Path = "" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }},
		{"no endpoint", func(c *Config) { c.Oracle.Endpoint = "" }},
		{"bad status interval", func(c *Config) { c.Sweep.StatusInterval = "often" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := withEndpoint()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEngineConfig_SingleModeForcesOneWorker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sweep.Workers = 8

	engine, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, engine.PartitionCount)
}

func TestParseDuration(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"":      0,
		"4":     4 * time.Second,
		"0.5":   500 * time.Millisecond,
		"1m30s": 90 * time.Second,
	} {
		got, err := parseDuration("x", in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseDuration("x", "soon")
	assert.ErrorIs(t, err, sweep.ErrInvalidConfig)
}
