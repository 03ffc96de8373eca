package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const settingsFilename = "settings.toml"

// fileDocument is the on-disk shape: one namespaced table holding the
// settings. Pointer fields let a partially written file fall back to
// defaults per key.
type fileDocument struct {
	Update fileSettings `toml:"update"`
}

type fileSettings struct {
	AutoCheck *bool   `toml:"auto_check"`
	Owner     *string `toml:"owner"`
	Repo      *string `toml:"repo"`
}

// FileStore persists Settings as TOML in the app data directory. Saves are
// synchronous; a Load after Save observes the written values.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewFileStore creates a store rooted at dir. The settings file is created
// lazily on first Save.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   filepath.Join(dir, settingsFilename),
		logger: logger,
	}
}

// Path returns the location of the settings file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the settings file, merging persisted values over defaults.
// A missing file yields pure defaults; an unreadable or malformed one is
// an error.
func (s *FileStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := Defaults()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("No settings file, using defaults", "path", s.path)
			return result, nil
		}
		return result, fmt.Errorf("failed to read settings file: %w", err)
	}

	var doc fileDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return result, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if doc.Update.AutoCheck != nil {
		result.AutoCheck = *doc.Update.AutoCheck
	}
	if doc.Update.Owner != nil {
		result.Owner = *doc.Update.Owner
	}
	if doc.Update.Repo != nil {
		result.Repo = *doc.Update.Repo
	}

	return result, nil
}

// Save writes the full settings record, replacing the file atomically.
func (s *FileStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := fileDocument{
		Update: fileSettings{
			AutoCheck: &settings.AutoCheck,
			Owner:     &settings.Owner,
			Repo:      &settings.Repo,
		},
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	s.logger.Debug("Settings saved", "path", s.path)
	return nil
}
