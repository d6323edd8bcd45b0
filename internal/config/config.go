// Package config provides configuration loading and management.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "tracereplay.toml"

// Config represents the replay configuration.
type Config struct {
	Player    PlayerConfig    `toml:"player"`
	Render    RenderConfig    `toml:"render"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Log       LogConfig       `toml:"log"`
}

// PlayerConfig contains navigation and auto-play settings.
type PlayerConfig struct {
	IntervalMs int    `toml:"interval_ms"` // Auto-play period in milliseconds (default 800)
	Mode       string `toml:"mode"`        // "step" (default) or "line"
	StartLine  int    `toml:"start_line"`  // 1-based trace line to open at
}

// RenderConfig controls what a rendered position shows.
type RenderConfig struct {
	MaxValueWidth int  `toml:"max_value_width"` // Truncate values longer than this (0 = unlimited)
	ShowHeap      bool `toml:"show_heap"`
	ShowOutput    bool `toml:"show_output"`
	ContextLines  int  `toml:"context_lines"` // Source lines around the current one
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	File  string `toml:"file"`  // Log destination while the interactive player runs
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Player: PlayerConfig{
			IntervalMs: 800,
			Mode:       "step",
		},
		Render: RenderConfig{
			MaxValueWidth: 40,
			ShowHeap:      true,
			ShowOutput:    true,
			ContextLines:  3,
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from tracereplay.toml in the current directory.
// A missing file yields the defaults.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, DefaultFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// Validate checks values that cannot be clamped silently.
func (c *Config) Validate() error {
	switch c.Player.Mode {
	case "", "step", "line":
	default:
		return fmt.Errorf("invalid player.mode %q: want \"step\" or \"line\"", c.Player.Mode)
	}
	if c.Player.IntervalMs < 0 {
		return fmt.Errorf("invalid player.interval_ms %d: must not be negative", c.Player.IntervalMs)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

// Interval returns the auto-play period. Zero means the player's default.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Player.IntervalMs) * time.Millisecond
}

// Save writes the configuration as TOML, refusing to replace an existing file unless force is set.
func (c *Config) Save(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# Trace replay configuration\n")
	buf.WriteString("# Generated by: tracereplay init\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
