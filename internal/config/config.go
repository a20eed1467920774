// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/loomchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete loomchat configuration.
type Config struct {
	Version string `toml:"version"`

	// Backend configuration
	Backend BackendConfig `toml:"backend"`

	// Generation configuration
	Generation GenerationConfig `toml:"generation"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// BackendConfig contains local backend server configuration.
type BackendConfig struct {
	// URL is the base URL of the local inference server
	URL string `toml:"url"`
	// RequestTimeoutSecs is the timeout for non-streaming requests
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	// CancelGraceSecs is how long to wait after a cancel request before
	// synthesizing a stopped result locally. Valid range is 1-30 seconds.
	CancelGraceSecs int `toml:"cancel_grace_secs"`
}

// GenerationConfig contains generation parameters sent with each request.
type GenerationConfig struct {
	// Model is the model identifier to generate with
	Model string `toml:"model"`
	// Temperature is the sampling temperature (0.0-2.0)
	Temperature float64 `toml:"temperature"`
	// MaxTokens is the generation cap (0 = server default)
	MaxTokens int `toml:"max_tokens"`
}

// StorageConfig contains chat persistence configuration.
type StorageConfig struct {
	// DatabasePath is where to store the chat database
	// (empty = ~/.loomchat/chats.db)
	DatabasePath string `toml:"database_path"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowMetrics displays generation metrics in the status bar
	ShowMetrics bool `toml:"show_metrics"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode"`
	// Markdown renders finalized assistant messages as markdown
	Markdown bool `toml:"markdown"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			URL:                "http://127.0.0.1:8317",
			RequestTimeoutSecs: 30,
			CancelGraceSecs:    3,
		},

		Generation: GenerationConfig{
			Model:       "qwen2.5:14b",
			Temperature: 0.7,
			MaxTokens:   0, // server default
		},

		Storage: StorageConfig{
			DatabasePath: "",
		},

		UI: UIConfig{
			Theme:       "dark",
			ShowMetrics: true,
			CompactMode: false,
			Markdown:    true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the loomchat configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".loomchat"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides overrides config fields from LOOMCHAT_* environment
// variables. Unparseable values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LOOMCHAT_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("LOOMCHAT_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("LOOMCHAT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Generation.Temperature = f
		}
	}
	if v := os.Getenv("LOOMCHAT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generation.MaxTokens = n
		}
	}
	if v := os.Getenv("LOOMCHAT_CANCEL_GRACE_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backend.CancelGraceSecs = n
		}
	}
	if v := os.Getenv("LOOMCHAT_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("LOOMCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// SetDefaults fills in missing values and clamps out-of-range ones.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Backend.URL == "" {
		c.Backend.URL = defaults.Backend.URL
	}
	if c.Backend.RequestTimeoutSecs <= 0 {
		c.Backend.RequestTimeoutSecs = defaults.Backend.RequestTimeoutSecs
	}

	// Clamp the cancel grace period; too short races the server's own
	// teardown, too long leaves a dead bubble on screen.
	if c.Backend.CancelGraceSecs < 1 {
		c.Backend.CancelGraceSecs = defaults.Backend.CancelGraceSecs
	}
	if c.Backend.CancelGraceSecs > 30 {
		c.Backend.CancelGraceSecs = 30
	}

	if c.Generation.Model == "" {
		c.Generation.Model = defaults.Generation.Model
	}
	if c.Generation.Temperature < 0 {
		c.Generation.Temperature = 0
	}
	if c.Generation.Temperature > 2 {
		c.Generation.Temperature = 2
	}
	if c.Generation.MaxTokens < 0 {
		c.Generation.MaxTokens = 0
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ValidationError{Field: "backend.url", Message: fmt.Sprintf("invalid URL %q", c.Backend.URL)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: "backend.url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return ValidationError{Field: "ui.theme", Message: fmt.Sprintf("unknown theme %q", c.UI.Theme)}
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# loomchat configuration file\n")
	buf.WriteString("# Generated by loomchat - edit with care\n\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// DatabasePath resolves the chat database location, preferring the
// configured path over the default.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chats.db"), nil
}

// normalizeURL trims a trailing slash so path joins stay predictable.
func normalizeURL(raw string) string {
	return strings.TrimRight(raw, "/")
}

// BackendURL returns the backend base URL without a trailing slash.
func (c *Config) BackendURL() string {
	return normalizeURL(c.Backend.URL)
}
