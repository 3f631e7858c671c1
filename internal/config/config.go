// Package config loads the user configuration of the rstd command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/mehditeymorian/rested/internal/telemetry"
)

const (
	envConfigDir = "RSTD_CONFIG_DIR"
	fileName     = "config.toml"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the content of config.toml.
type Config struct {
	ScratchDir string    `toml:"scratch_dir"`
	Namespace  string    `toml:"namespace,omitempty"`
	Timeout    string    `toml:"timeout,omitempty"`
	Color      string    `toml:"color,omitempty"`
	Telemetry  Telemetry `toml:"telemetry"`
}

// Telemetry configures span export.
type Telemetry struct {
	Endpoint    string `toml:"endpoint,omitempty"`
	Insecure    bool   `toml:"insecure,omitempty"`
	ServiceName string `toml:"service_name,omitempty"`
}

// Dir returns the configuration directory: $RSTD_CONFIG_DIR, else
// <user config dir>/rested.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(envConfigDir)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "rested")
	}
	return filepath.Join(".", ".rested")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// Default returns the configuration used when no file exists.
func Default() Config {
	scratch := "rested-scratch"
	if home, err := os.UserHomeDir(); err == nil {
		scratch = filepath.Join(home, scratch)
	}
	return Config{ScratchDir: scratch, Color: ColorAuto}
}

// Load reads the config file. A missing file yields Default.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads path. A missing file yields Default; parse errors fail.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to Path.
func Save(cfg Config) error {
	return SaveFile(Path(), cfg)
}

// SaveFile writes cfg to path, creating the directory.
func SaveFile(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}

// Validate checks the values that have a fixed vocabulary.
func (c Config) Validate() error {
	switch c.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q (use auto, always or never)", c.Color)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout. Empty means zero, which keeps the
// transport default.
func (c Config) TimeoutDuration() (time.Duration, error) {
	raw := strings.TrimSpace(c.Timeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", raw)
	}
	return d, nil
}

// TelemetryConfig converts the [telemetry] table.
func (c Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		ServiceName: c.Telemetry.ServiceName,
	}
}

// Keys lists the settable keys in the order `rstd config show` prints them.
func Keys() []string {
	return []string{"scratch_dir", "namespace", "timeout", "color", "telemetry.endpoint", "telemetry.insecure", "telemetry.service_name"}
}

// Get returns the value of key as text.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "scratch_dir":
		return c.ScratchDir, nil
	case "namespace":
		return c.Namespace, nil
	case "timeout":
		return c.Timeout, nil
	case "color":
		return c.Color, nil
	case "telemetry.endpoint":
		return c.Telemetry.Endpoint, nil
	case "telemetry.insecure":
		return strconv.FormatBool(c.Telemetry.Insecure), nil
	case "telemetry.service_name":
		return c.Telemetry.ServiceName, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// Set assigns key from text and validates the result.
func (c *Config) Set(key, value string) error {
	next := *c
	switch key {
	case "scratch_dir":
		next.ScratchDir = value
	case "namespace":
		next.Namespace = value
	case "timeout":
		next.Timeout = value
	case "color":
		next.Color = value
	case "telemetry.endpoint":
		next.Telemetry.Endpoint = value
	case "telemetry.insecure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid telemetry.insecure %q: %w", value, err)
		}
		next.Telemetry.Insecure = b
	case "telemetry.service_name":
		next.Telemetry.ServiceName = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
