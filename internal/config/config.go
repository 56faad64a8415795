package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where operator defaults are looked up when
// REFGUARD_CONFIG is not set.
const DefaultPath = "/etc/refguard.yaml"

// Config holds operator-side defaults that apply to every hook invocation
// on this host. Everything repository-specific lives in the repository's
// hooks.json; this file only carries the knobs a pushing user must not be
// able to influence.
type Config struct {
	// MaxLogCommits caps the number of commits included per change when a
	// hook requests include-log. Zero means unlimited.
	MaxLogCommits int `yaml:"max_log_commits"`

	// MaxRedirects caps HTTP redirects followed by the webhook dispatcher.
	MaxRedirects int `yaml:"max_redirects"`

	// LogLevel is the slog level for diagnostics ("debug", "info", "warn",
	// "error"). Hook stderr is relayed to the pushing client, so the
	// default stays quiet.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxLogCommits: 500,
		MaxRedirects:  5,
		LogLevel:      "warn",
	}
}

// Load reads the config from the given YAML file path, then applies
// environment variable overrides. If the file does not exist, defaults
// are used. An empty path falls back to REFGUARD_CONFIG, then DefaultPath.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("REFGUARD_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	if err := parseFile(cfg, path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: %w", err)
		}
		// File not found — use defaults
	}

	parseEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func parseFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return yaml.NewDecoder(f).Decode(cfg)
}

func parseEnv(cfg *Config) {
	if v := os.Getenv("REFGUARD_MAX_LOG_COMMITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLogCommits = n
		}
	}
	if v := os.Getenv("REFGUARD_MAX_REDIRECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRedirects = n
		}
	}
	if v := os.Getenv("REFGUARD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if c.MaxLogCommits < 0 {
		return fmt.Errorf("max_log_commits must not be negative")
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel resolves the configured log level name.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
