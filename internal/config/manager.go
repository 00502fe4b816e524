// Package config persists the application configuration as
// pretty-printed JSON under the user's config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a configuration manager. An empty configFile uses
// the default path; a missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		actualConfigPath = filepath.Join(homeDir, ".config", "screenshotos", "config.json")
	}

	m := &Manager{configPath: actualConfigPath}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = m.getDefaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("save_dir", m.config.SaveDirectory).
		Msg("Config loaded")

	return m, nil
}

// getDefaults returns default configuration
func (m *Manager) getDefaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, "Pictures", "Screenshots")

	return &Config{
		SaveDirectory:       base,
		ArchiveDirectory:    filepath.Join(base, "Archive"),
		TrashDirectory:      filepath.Join(base, ".trash"),
		FilenameTemplate:    "screenshot-%TIMESTAMP%",
		FileFormat:          "png",
		DeleteConfirmation:  true,
		ArchiveConfirmation: false,
		CopyToClipboard:     true,
		ServerPort:          8687,
		LogLevel:            "info",
		Shortcuts: Shortcuts{
			FullScreen:  "CommandOrControl+Shift+3",
			AreaCapture: "CommandOrControl+Shift+4",
		},
	}
}

// load reads the configuration from disk, migrating legacy fields.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	defaults := m.getDefaults()
	if cfg.SaveDirectory == "" {
		cfg.SaveDirectory = defaults.SaveDirectory
	}
	if cfg.ArchiveDirectory == "" {
		cfg.ArchiveDirectory = defaults.ArchiveDirectory
	}
	if cfg.TrashDirectory == "" {
		cfg.TrashDirectory = defaults.TrashDirectory
	}
	if cfg.FilenameTemplate == "" {
		cfg.FilenameTemplate = defaults.FilenameTemplate
	}
	if cfg.FileFormat == "" {
		cfg.FileFormat = defaults.FileFormat
	}
	if cfg.ServerPort == 0 {
		cfg.ServerPort = defaults.ServerPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	// Older releases stored a single "shortcut" key bound to full-screen
	// capture. Migrate it into the shortcuts block.
	needsMigration := false
	if cfg.Shortcuts.FullScreen == "" && cfg.Shortcuts.AreaCapture == "" {
		needsMigration = true
		cfg.Shortcuts = defaults.Shortcuts
		if cfg.LegacyShortcut != "" {
			logger.WithComponent("config").Info().
				Str("shortcut", cfg.LegacyShortcut).
				Msg("Migrating legacy single-shortcut config")
			cfg.Shortcuts.FullScreen = cfg.LegacyShortcut
		}
		cfg.LegacyShortcut = ""
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()

	if needsMigration {
		if err := m.Save(); err != nil {
			logger.WithComponent("config").Warn().Err(err).Msg("Failed to save migrated config")
		}
	}

	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return m.getDefaults()
	}
	cfg := *m.config
	return &cfg
}

// GetConfigPath returns the path of the backing file.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = m.getDefaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Pretty-printed for hand editing.
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, append(data, '\n'), 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update replaces the entire configuration and persists it.
func (m *Manager) Update(cfg *Config) error {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetPort overrides the server port without persisting.
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = m.getDefaults()
	}
	m.config.ServerPort = port
}

// SetLogLevel overrides the log level without persisting.
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = m.getDefaults()
	}
	m.config.LogLevel = level
}
