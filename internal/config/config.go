// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads milbus settings from YAML or TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Defaults
const (
	DefaultBaudRate      = 115200
	DefaultLogLevel      = "info"
	DefaultMaxSizeMB     = 25
	DefaultMaxAgeDays    = 7
	DefaultMaxBackups    = 5
	DefaultStatsInterval = 10
)

type ConnectionConfig struct {
	Port        string `yaml:"port" toml:"port"`
	Baud        int    `yaml:"baud" toml:"baud"`
	URL         string `yaml:"url" toml:"url"`
	Username    string `yaml:"username" toml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify" toml:"no_ssl_verify"`
}

type LogConfig struct {
	File       string `yaml:"file" toml:"file"`
	Level      string `yaml:"level" toml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

type MonitorConfig struct {
	StatsInterval int    `yaml:"stats_interval" toml:"stats_interval"`
	ShowAll       bool   `yaml:"show_all" toml:"show_all"`
	Terminals     []int  `yaml:"terminals" toml:"terminals"`
	Capture       string `yaml:"capture" toml:"capture"`
}

// Config is the full milbus configuration
type Config struct {
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Logs       LogConfig        `yaml:"logs" toml:"logs"`
	Monitor    MonitorConfig    `yaml:"monitor" toml:"monitor"`
}

// Default returns a configuration with every default applied
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads the file at path, picking the decoder from its extension,
// fills in defaults and validates the result
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// an empty document decodes to io.EOF
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Connection.Baud <= 0 {
		c.Connection.Baud = DefaultBaudRate
	}
	if strings.TrimSpace(c.Logs.Level) == "" {
		c.Logs.Level = DefaultLogLevel
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = DefaultMaxAgeDays
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = DefaultMaxBackups
	}
	if c.Monitor.StatsInterval <= 0 {
		c.Monitor.StatsInterval = DefaultStatsInterval
	}
}

// Validate checks values that defaults cannot repair
func (c Config) Validate() error {
	if strings.TrimSpace(c.Connection.Port) != "" && strings.TrimSpace(c.Connection.URL) != "" {
		return fmt.Errorf("connection: port and url are mutually exclusive")
	}
	if u := strings.TrimSpace(c.Connection.URL); u != "" &&
		!strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		return fmt.Errorf("connection: url must use ws:// or wss://")
	}
	switch strings.ToLower(c.Logs.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("logs: unknown level %q", c.Logs.Level)
	}
	for i, rt := range c.Monitor.Terminals {
		if rt < 0 || rt > 31 {
			return fmt.Errorf("monitor: terminals[%d] out of range: %d", i, rt)
		}
	}
	return nil
}

// TerminalFilter returns the monitor allow-list as a set, or nil to allow all
func (c Config) TerminalFilter() map[uint8]bool {
	if len(c.Monitor.Terminals) == 0 {
		return nil
	}
	set := make(map[uint8]bool, len(c.Monitor.Terminals))
	for _, rt := range c.Monitor.Terminals {
		set[uint8(rt)] = true
	}
	return set
}
