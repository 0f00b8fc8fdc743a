package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the registry endpoints. These are the public crates.io
// contract: one bulk dump, one per-crate ownership API.
const (
	DefaultDumpURL    = "https://static.crates.io/db-dump.tar.gz"
	DefaultAPIBaseURL = "https://crates.io/api/v1"

	defaultWorkers     = 4
	defaultCacheMaxAge = 48 * time.Hour
	defaultHTTPTimeout = 5 * time.Minute
)

// Config holds tool configuration, loaded from an optional yaml file
// with flag overrides applied by the command layer.
type Config struct {
	CacheDir    string         `yaml:"cacheDir"`
	Workers     int            `yaml:"workers"`
	CacheMaxAge string         `yaml:"cacheMaxAge"`
	HTTPTimeout string         `yaml:"httpTimeout"`
	Registry    RegistryConfig `yaml:"registry"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// RegistryConfig points at the registry's two read-only endpoints.
type RegistryConfig struct {
	DumpURL    string `yaml:"dumpURL"`
	APIBaseURL string `yaml:"apiBaseURL"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers: defaultWorkers,
		Registry: RegistryConfig{
			DumpURL:    DefaultDumpURL,
			APIBaseURL: DefaultAPIBaseURL,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a yaml config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := c.parseDuration(c.CacheMaxAge, defaultCacheMaxAge); err != nil {
		return fmt.Errorf("cacheMaxAge: %w", err)
	}
	if _, err := c.parseDuration(c.HTTPTimeout, defaultHTTPTimeout); err != nil {
		return fmt.Errorf("httpTimeout: %w", err)
	}
	return nil
}

func (c *Config) parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// ResolveCacheDir returns the absolute cache directory, falling back to
// the user cache dir when the config does not name one.
func (c *Config) ResolveCacheDir() (string, error) {
	if c.CacheDir != "" {
		return filepath.Abs(c.CacheDir)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving user cache directory: %w", err)
	}
	return filepath.Join(base, "depowners"), nil
}

// MaxAge returns the configured cache freshness threshold.
func (c *Config) MaxAge() time.Duration {
	d, _ := c.parseDuration(c.CacheMaxAge, defaultCacheMaxAge)
	return d
}

// Timeout returns the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	d, _ := c.parseDuration(c.HTTPTimeout, defaultHTTPTimeout)
	return d
}

// IsDebugMode returns true if debug logging is enabled.
func (c *Config) IsDebugMode() bool {
	return c.Logging.Level == "debug"
}
