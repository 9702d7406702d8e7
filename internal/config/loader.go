package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".config/bootkit"
	configFileName = "config.yaml"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "BOOTKIT_CONFIG"

// Loader handles reading and writing configuration.
type Loader struct {
	configPath string
}

// NewLoader creates a loader for $BOOTKIT_CONFIG or ~/.config/bootkit/config.yaml.
func NewLoader() (*Loader, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return NewLoaderAt(path), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	return NewLoaderAt(filepath.Join(home, configDirName, configFileName)), nil
}

// NewLoaderAt creates a loader for an explicit file path.
func NewLoaderAt(path string) *Loader {
	return &Loader{configPath: path}
}

// Load reads the configuration from disk.
// If the file does not exist, it returns an empty configuration.
func (l *Loader) Load() (*AppConfig, error) {
	data, err := os.ReadFile(l.configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg := NewAppConfig()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := NewAppConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// Save writes the configuration to disk.
func (l *Loader) Save(cfg *AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(l.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(l.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the absolute path to the configuration file.
func (l *Loader) GetConfigPath() string {
	return l.configPath
}
