// Package config loads the user's YAML configuration, falling back to
// defaults when no file exists. Absence of config is the normal case.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ldi/focal/internal/paths"
)

// Config holds the user-tunable settings.
type Config struct {
	// DatabasePath overrides where the SQLite database lives. Empty means
	// the default data directory.
	DatabasePath string `yaml:"database_path"`

	// PollIntervalSeconds is the monitor's fallback refresh cadence when
	// filesystem notification is unavailable.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	// EventHistory is how many recent events the monitor shows.
	EventHistory int `yaml:"event_history"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		PollIntervalSeconds: 2,
		EventHistory:        20,
	}
}

// Load reads the config file at the standard location, or returns defaults
// when the file does not exist. A file that exists but fails to parse is an
// error; silently masking a typo with defaults would be worse.
func Load() (*Config, error) {
	path, err := paths.ConfigFile()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = Default().PollIntervalSeconds
	}
	if cfg.EventHistory <= 0 {
		cfg.EventHistory = Default().EventHistory
	}
	return cfg, nil
}

// Save writes the config back to the given path, owner-readable only.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ResolveDatabasePath returns the database location: the configured override
// if set, otherwise the default under the data directory.
func (c *Config) ResolveDatabasePath() (string, error) {
	if c.DatabasePath != "" {
		return c.DatabasePath, nil
	}
	return paths.DatabaseFile()
}
