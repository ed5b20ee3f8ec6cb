// Package config loads and watches the pagesnap configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration. Zero values fall back to defaults
// via Normalize.
type Config struct {
	Viewport struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"viewport"`

	// TileScale is the fraction of the viewport covered by one tile.
	TileScale float64 `yaml:"tile_scale"`

	// SettleMs is the pause after scrolling before a capture attempt.
	SettleMs int `yaml:"settle_ms"`

	// PrepareDelayMs is the pause per step of the lazy-load pass.
	PrepareDelayMs int `yaml:"prepare_delay_ms"`

	// MaxInFlight bounds concurrent tile requests.
	MaxInFlight int `yaml:"max_in_flight"`

	Retry struct {
		MaxAttempts int `yaml:"max_attempts"`
		MaxDelayMs  int `yaml:"max_delay_ms"`
	} `yaml:"retry"`

	// QuotaRPS is the sustained rate allowed against the capture
	// primitive, in captures per second.
	QuotaRPS float64 `yaml:"quota_rps"`

	// CaptureTimeoutMs bounds one primitive call.
	CaptureTimeoutMs int `yaml:"capture_timeout_ms"`

	OutputDir string `yaml:"output_dir"`
	HistoryDB string `yaml:"history_db"`

	S3 struct {
		Bucket string `yaml:"bucket"`
		Prefix string `yaml:"prefix"`
	} `yaml:"s3"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Load reads a YAML config file. A missing file yields defaults, not an
// error; the tool should run with zero setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills zero fields with defaults and expands paths.
func (c *Config) Normalize() {
	if c.Viewport.Width <= 0 {
		c.Viewport.Width = 1280
	}
	if c.Viewport.Height <= 0 {
		c.Viewport.Height = 900
	}
	if c.TileScale <= 0 || c.TileScale > 1 {
		c.TileScale = 0.9
	}
	if c.SettleMs <= 0 {
		c.SettleMs = 350
	}
	if c.PrepareDelayMs <= 0 {
		c.PrepareDelayMs = 150
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 3
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 2000
	}
	if c.QuotaRPS <= 0 {
		c.QuotaRPS = 2
	}
	if c.CaptureTimeoutMs <= 0 {
		c.CaptureTimeoutMs = 10000
	}
	if c.OutputDir == "" {
		c.OutputDir = ExpandHome("~/pagesnap")
	} else {
		c.OutputDir = ExpandHome(c.OutputDir)
	}
	if c.HistoryDB == "" {
		c.HistoryDB = filepath.Join(c.OutputDir, "history.db")
	} else {
		c.HistoryDB = ExpandHome(c.HistoryDB)
	}
}

// DefaultPath is the standard config location.
func DefaultPath() string {
	return ExpandHome("~/.config/pagesnap/config.yaml")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
