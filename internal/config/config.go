// Package config loads the replication engine's bootstrap configuration:
// the root directory layout and the handful of process-wide defaults that
// apply before a specific mapping's own attributes (internal/model.Attrs)
// take over. Shaped after the teacher's internal/config.LoadConfig: defaults
// first, then YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Config is the engine process's bootstrap configuration.
type Config struct {
	// Root is the deployment root containing plugins/, config/, repl/, help/
	// (spec §6).
	Root string `yaml:"root"`

	// DefaultLogLevel is loaded from default_log_level. No other package
	// reads it; a mapping without log_level uses internal/model's own
	// default.
	DefaultLogLevel int `yaml:"default_log_level"`

	// LockRetries/LockDelayMS are loaded (LockRetries must be >= 0), but the
	// store package's advisory lock does not read them; it uses its own
	// fixed retry count and delay.
	LockRetries int `yaml:"lock_retries"`
	LockDelayMS int `yaml:"lock_delay_ms"`

	// MetricsAddr is loaded from metrics_addr or DTG_METRICS_ADDR. No
	// package starts a /metrics listener from it.
	MetricsAddr string `yaml:"metrics_addr"`
}

func defaults() Config {
	return Config{
		DefaultLogLevel: 2,
		LockRetries:     5,
		LockDelayMS:     100,
	}
}

// Load builds a Config starting from defaults, overlaying config/engine.yaml
// under root if present, then applying the DTG_METRICS_ADDR environment
// override (teacher: internal/config.go's load-merge-validate with env
// override shape). DTG_ROOT is not read here; callers resolve root.
func Load(root string) (*Config, error) {
	cfg := defaults()
	cfg.Root = root

	path := filepath.Join(root, "config", "engine.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Root = root // root is always the CLI/env value, never file-overridden
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if v := os.Getenv("DTG_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	if cfg.LockRetries < 0 {
		return nil, fmt.Errorf("config: lock_retries must be >= 0, got %d", cfg.LockRetries)
	}
	return &cfg, nil
}

// ConfigDir is config/ under the deployment root (spec §6).
func (c *Config) ConfigDir() string { return filepath.Join(c.Root, "config") }

// ReplDir is repl/ under the deployment root: logs and the run/stop/err
// marker files.
func (c *Config) ReplDir() string { return filepath.Join(c.Root, "repl") }

// PluginDir is plugins/ under the deployment root.
func (c *Config) PluginDir() string { return filepath.Join(c.Root, "plugins") }
