// Package config loads and saves the persistent client configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecarlow/vertigo/internal/feed"
)

// Config is the persistent application configuration, stored as JSON under
// the app data directory.
type Config struct {
	// API settings
	APIBaseURL string `json:"api_base_url"`
	APIToken   string `json:"api_token,omitempty"` // falls back to VERTIGO_API_TOKEN

	// Feed preferences
	DefaultFeed feed.Kind `json:"default_feed"`
	HideForYou  bool      `json:"hide_for_you"`

	// Playback preferences
	MuteOnOpen bool `json:"mute_on_open"`
	TickMillis int  `json:"tick_millis"` // playback clock resolution
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		APIBaseURL:  "https://api.vertigo.example",
		DefaultFeed: feed.KindForYou,
		TickMillis:  250,
	}
}

// DataDir returns the app data directory, creating it if needed.
func DataDir() (string, error) {
	if dir := os.Getenv("VERTIGO_DATA_DIR"); dir != "" {
		return dir, os.MkdirAll(dir, 0755)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".vertigo")
	return dir, os.MkdirAll(dir, 0755)
}

func configPath(dataDir string) string {
	return filepath.Join(dataDir, "config.json")
}

// Load reads the config file from dataDir, returning defaults when it does
// not exist. Unknown fields are ignored; a corrupt file is an error rather
// than silently replaced.
func Load(dataDir string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(configPath(dataDir))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.TickMillis <= 0 {
		cfg.TickMillis = Default().TickMillis
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(dataDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(configPath(dataDir), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Token returns the API token, preferring the config file over the
// environment.
func (c *Config) Token() string {
	if c.APIToken != "" {
		return c.APIToken
	}
	return os.Getenv("VERTIGO_API_TOKEN")
}
