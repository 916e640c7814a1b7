// Package config handles loading and parsing the application's configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage engines.
const (
	EngineLocal = "local" // writes go straight to the sharded store
	EngineRaft  = "raft"  // writes are ordered through an in-memory raft log
)

// Config holds all configuration for the application.
// We use struct tags to explicitly map TOML and YAML keys to struct fields.
type Config struct {
	NodeID          string       `toml:"node_id" yaml:"node_id"`
	Host            string       `toml:"host" yaml:"host"`
	Port            int          `toml:"port" yaml:"port"`
	LogLevel        string       `toml:"log_level" yaml:"log_level"`
	LogJSON         bool         `toml:"log_json" yaml:"log_json"`
	Engine          string       `toml:"engine" yaml:"engine"`
	ApplyTimeout    string       `toml:"apply_timeout" yaml:"apply_timeout"`       // raft engine only
	ShutdownTimeout string       `toml:"shutdown_timeout" yaml:"shutdown_timeout"` // graceful HTTP drain
	Store           StoreConfig  `toml:"store" yaml:"store"`
	Events          EventsConfig `toml:"events" yaml:"events"`
}

// StoreConfig tunes the in-memory store.
type StoreConfig struct {
	Shards int `toml:"shards" yaml:"shards"`
}

// EventsConfig tunes the change feed.
type EventsConfig struct {
	Buffer int `toml:"buffer" yaml:"buffer"`
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		NodeID:          "node-1",
		Host:            "localhost",
		Port:            8080,
		LogLevel:        "info",
		Engine:          EngineLocal,
		ApplyTimeout:    "5s",
		ShutdownTimeout: "10s",
		Store:           StoreConfig{Shards: 32},
		Events:          EventsConfig{Buffer: 100},
	}
}

// Load reads a configuration file from the given path and populates the Config struct.
// The format is chosen by extension: .toml, .yaml or .yml.
func (c *Config) Load(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format: %q", ext)
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	switch c.Engine {
	case EngineLocal, EngineRaft:
	default:
		return fmt.Errorf("unknown engine %q (want %q or %q)", c.Engine, EngineLocal, EngineRaft)
	}
	if c.Store.Shards <= 0 {
		return fmt.Errorf("store.shards must be positive, got %d", c.Store.Shards)
	}
	if c.Events.Buffer < 0 {
		return fmt.Errorf("events.buffer must be non-negative, got %d", c.Events.Buffer)
	}
	if _, err := parseDuration("apply_timeout", c.ApplyTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("shutdown_timeout", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// Addr is the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ApplyTimeoutDuration returns the parsed apply timeout, or zero when unset
// or invalid.
func (c *Config) ApplyTimeoutDuration() time.Duration {
	d, _ := parseDuration("apply_timeout", c.ApplyTimeout)
	return d
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout, or zero when
// unset or invalid.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := parseDuration("shutdown_timeout", c.ShutdownTimeout)
	return d
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %s", field, s)
	}
	return d, nil
}
