// Package paths resolves the XDG base directories the tool stores its
// per-user state in. Everything lives under the invoking user with
// owner-only permissions.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "focal"

// ConfigDir returns the directory holding config.yaml, creating it with
// owner-only permissions if needed. $XDG_CONFIG_HOME overrides the default
// ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return ensureDir(filepath.Join(base, appName))
}

// DataDir returns the directory holding the database, creating it with
// owner-only permissions if needed. $XDG_DATA_HOME overrides the default
// ~/.local/share.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return ensureDir(filepath.Join(base, appName))
}

// RuntimeDir returns the directory for ephemeral cross-process state, such
// as the change marker the monitor watches. $XDG_RUNTIME_DIR is preferred;
// without it the data directory stands in, since per-boot cleanup is a
// convenience rather than a requirement here.
func RuntimeDir() (string, error) {
	if base := os.Getenv("XDG_RUNTIME_DIR"); base != "" {
		return ensureDir(filepath.Join(base, appName))
	}
	return DataDir()
}

// ConfigFile returns the path of the YAML config file.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DatabaseFile returns the default path of the SQLite database.
func DatabaseFile() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "focal.db"), nil
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return dir, nil
}
