// Package settings persists the user-tunable update configuration.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

// Settings holds the persisted update configuration. Exactly these three
// fields are stored; everything else about update behavior is derived at
// call time.
type Settings struct {
	AutoCheck bool   `toml:"auto_check" json:"auto_check" doc:"Check for updates automatically on startup"`
	Owner     string `toml:"owner" json:"owner" doc:"Release source owner"`
	Repo      string `toml:"repo" json:"repo" doc:"Release source repository"`
}

// Defaults returns the configuration used when no settings file exists or
// a field is missing from it.
func Defaults() Settings {
	return Settings{
		AutoCheck: true,
		Owner:     "wab2b",
		Repo:      "wab2b-helper",
	}
}

// Store reads and writes Settings. Implementations must return defaults
// for anything not yet persisted.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// AppDataDir resolves the writable per-user data directory for the helper,
// creating it if needed.
func AppDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}

	dir := filepath.Join(base, "wab2b-helper")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}
	return dir, nil
}
