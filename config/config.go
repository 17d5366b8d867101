package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the full on-disk configuration.
type Settings struct {
	Server      ServerSettings      `json:"server"`
	Database    DatabaseSettings    `json:"database"`
	Images      ImagesSettings      `json:"images"`
	Scores      ScoresSettings      `json:"scores"`
	Auth        AuthSettings        `json:"auth"`
	Leaderboard LeaderboardSettings `json:"leaderboard"`
	Log         LogSettings         `json:"log"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	ListenAddr string `json:"listenAddr"`
}

// DatabaseSettings configures the sqlite store.
type DatabaseSettings struct {
	Path string `json:"path"`
}

// ImagesSettings configures the capture object store.
type ImagesSettings struct {
	RootPath string `json:"rootPath"`
}

// ScoresSettings configures the external score backend client.
type ScoresSettings struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// AuthSettings configures bearer token verification. An empty secret is
// replaced with a generated one on first start and written back.
type AuthSettings struct {
	Secret string `json:"secret"`
}

// LeaderboardSettings configures the tenant namespace for board slugs.
type LeaderboardSettings struct {
	SlugPrefix string `json:"slugPrefix"`
}

// LogSettings configures process log rotation.
type LogSettings struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
}

// DefaultSettings returns the configuration used when no settings file
// exists yet.
func DefaultSettings() Settings {
	return Settings{
		Server:      ServerSettings{ListenAddr: ":8080"},
		Database:    DatabaseSettings{Path: "data/ctwapi.db"},
		Images:      ImagesSettings{RootPath: "data/images"},
		Scores:      ScoresSettings{BaseURL: "http://localhost:5010", TimeoutSeconds: 10},
		Leaderboard: LeaderboardSettings{SlugPrefix: "ctw_"},
		Log:         LogSettings{Path: "data/ctwapi.log", MaxSizeMB: 50, MaxBackups: 3},
	}
}

// Manager loads and saves the settings file. Reads hit a cached copy after
// the first load.
type Manager struct {
	path string

	mu     sync.RWMutex
	cached *Settings
}

// NewManager creates a settings manager for the given file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load returns the current settings, reading the file on first use. A
// missing file yields the defaults without creating it.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	if m.cached != nil {
		settings := *m.cached
		m.mu.RUnlock()
		return settings, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached != nil {
		return *m.cached, nil
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		settings := DefaultSettings()
		m.cached = &settings
		return settings, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	m.cached = &settings
	return settings, nil
}

// Save writes the settings atomically and refreshes the cache.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}

	m.cached = &settings
	return nil
}
