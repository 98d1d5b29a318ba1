package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"digitsweep/pkg/sweep"
)

// Config holds all digitsweep configuration.
type Config struct {
	// Sweep scheduling
	Sweep SweepConfig `yaml:"sweep"`

	// Result store backend
	Store StoreConfig `yaml:"store"`

	// Verification service
	Oracle OracleConfig `yaml:"oracle"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SweepConfig configures the coordinator and its workers.
type SweepConfig struct {
	Mode           string `yaml:"mode"`    // single, multi
	Workers        int    `yaml:"workers"` // multi mode only
	Delay          string `yaml:"delay"`
	IdlePause      string `yaml:"idle_pause"`
	StatusInterval string `yaml:"status_interval"`
	MaxWidth       int    `yaml:"max_width"` // 0 = full space
}

// StoreConfig selects and configures the result store.
type StoreConfig struct {
	Backend string `yaml:"backend"` // file, sqlite, mysql, postgres, redis, memory
	Path    string `yaml:"path"`    // file and sqlite
	DSN     string `yaml:"dsn"`     // mysql DSN, postgres or redis URL
	Table   string `yaml:"table"`   // sql backends
	Prefix  string `yaml:"prefix"`  // redis key prefix
}

// OracleConfig configures the HTTP verification client.
type OracleConfig struct {
	Endpoint      string            `yaml:"endpoint"`
	Headers       map[string]string `yaml:"headers"`
	Timeout       string            `yaml:"timeout"`
	RateLimitWait string            `yaml:"rate_limit_wait"` // empty = mode default
}

// MetricsConfig configures the /metrics listener.
type MetricsConfig struct {
	Addr      string `yaml:"addr"` // empty disables the listener
	Namespace string `yaml:"namespace"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // auto, json, console
}

// Backends lists the supported store backends.
var Backends = []string{"file", "sqlite", "mysql", "postgres", "redis", "memory"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Sweep: SweepConfig{
			Mode:           "single",
			Workers:        1,
			Delay:          "4s",
			IdlePause:      "30s",
			StatusInterval: "10s",
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    "AiONdatabase.json",
			Table:   "sweep_results",
			Prefix:  "digitsweep:",
		},
		Oracle: OracleConfig{
			// No endpoint is compiled in; see digitsweep.example.yaml
			Headers: map[string]string{},
			Timeout: "30s",
		},
		Metrics: MetricsConfig{
			Namespace: "digitsweep",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if endpoint := os.Getenv("DIGITSWEEP_ENDPOINT"); endpoint != "" {
		c.Oracle.Endpoint = endpoint
	}
	if dsn := os.Getenv("DIGITSWEEP_DSN"); dsn != "" {
		c.Store.DSN = dsn
	}
	if path := os.Getenv("DIGITSWEEP_STORE"); path != "" {
		c.Store.Path = path
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	if !slices.Contains(Backends, c.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, Backends)
	}
	switch c.Store.Backend {
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store backend %s needs a path", c.Store.Backend)
		}
	case "mysql", "postgres", "redis":
		if c.Store.DSN == "" {
			return fmt.Errorf("store backend %s needs a dsn", c.Store.Backend)
		}
	}
	if c.Oracle.Endpoint == "" {
		return fmt.Errorf("oracle endpoint not configured (set oracle.endpoint, --endpoint or DIGITSWEEP_ENDPOINT)")
	}
	for name, value := range map[string]string{
		"oracle.timeout":         c.Oracle.Timeout,
		"oracle.rate_limit_wait": c.Oracle.RateLimitWait,
		"sweep.status_interval":  c.Sweep.StatusInterval,
	} {
		if _, err := parseDuration(name, value); err != nil {
			return err
		}
	}
	return nil
}

// EngineConfig converts the sweep section to the coordinator's Config.
func (c *Config) EngineConfig() (sweep.Config, error) {
	mode, err := sweep.ParseMode(c.Sweep.Mode)
	if err != nil {
		return sweep.Config{}, err
	}
	delay, err := parseDuration("sweep.delay", c.Sweep.Delay)
	if err != nil {
		return sweep.Config{}, err
	}
	idle, err := parseDuration("sweep.idle_pause", c.Sweep.IdlePause)
	if err != nil {
		return sweep.Config{}, err
	}

	workers := c.Sweep.Workers
	if mode == sweep.ModeSingle {
		workers = 1
	}
	if workers < 1 {
		return sweep.Config{}, fmt.Errorf("%w: sweep.workers must be at least 1, got %d", sweep.ErrInvalidConfig, workers)
	}
	if delay < 0 {
		return sweep.Config{}, fmt.Errorf("%w: sweep.delay must not be negative", sweep.ErrInvalidConfig)
	}
	if c.Sweep.MaxWidth < 0 || c.Sweep.MaxWidth > sweep.MaxWidth {
		return sweep.Config{}, fmt.Errorf("%w: sweep.max_width must be 0-%d", sweep.ErrInvalidConfig, sweep.MaxWidth)
	}

	return sweep.Config{
		Mode:           mode,
		PartitionCount: workers,
		Delay:          delay,
		IdlePause:      idle,
		MaxWidth:       c.Sweep.MaxWidth,
	}, nil
}

// GetRateLimitWait returns the configured backoff, or the mode default.
func (c *Config) GetRateLimitWait(mode sweep.Mode) time.Duration {
	d, err := parseDuration("oracle.rate_limit_wait", c.Oracle.RateLimitWait)
	if err != nil || d <= 0 {
		return sweep.RateLimitWaitFor(mode)
	}
	return d
}

// GetOracleTimeout returns the per-request timeout as a duration.
func (c *Config) GetOracleTimeout() time.Duration {
	d, err := parseDuration("oracle.timeout", c.Oracle.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetStatusInterval returns the status board interval as a duration.
func (c *Config) GetStatusInterval() time.Duration {
	d, err := parseDuration("sweep.status_interval", c.Sweep.StatusInterval)
	if err != nil || d <= 0 {
		return sweep.DefaultStatusInterval
	}
	return d
}

// parseDuration accepts Go durations ("4s", "1m30s") and bare numbers of
// seconds ("4", "0.5"). Empty means zero.
func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("%w: %s: invalid duration %q", sweep.ErrInvalidConfig, name, value)
}
