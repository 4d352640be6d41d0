// Package config holds eidolon's runtime configuration: server
// address, storage backend, strain tuning, and decay scheduling.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/project-eidolon/eidolon/internal/strain"
)

// Config is the full eidolon configuration.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	Strain   strain.Params `yaml:"strain"`
	Decay    DecayConfig   `yaml:"decay"`
	LogLevel string        `yaml:"log_level"` // debug, info, warn, error
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the persistence backend. Backend "badger"
// expects Path to be a directory, "sqlite" a database file, and
// "memory" keeps the graph in-process only.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "badger", "sqlite", "memory"
	Path    string `yaml:"path"`
}

// DecayConfig schedules the background decay pass. yaml.v3 has no
// native duration parsing, so the interval is expressed in hours.
type DecayConfig struct {
	IntervalHours int `yaml:"interval_hours"`
}

// Interval returns the decay interval as a duration, defaulting to
// daily when unset.
func (d DecayConfig) Interval() time.Duration {
	if d.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(d.IntervalHours) * time.Hour
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 5002,
		},
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "", // resolved at runtime under the data dir
		},
		Strain: strain.DefaultParams(),
		Decay: DecayConfig{
			IntervalHours: 24,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file over the defaults. A missing file is
// not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DefaultDataDir returns ~/.eidolon, the default home for storage.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return home + "/.eidolon", nil
}
