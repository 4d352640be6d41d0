package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 5002 {
		t.Errorf("port = %d, want 5002", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "badger" {
		t.Errorf("backend = %q, want badger", cfg.Storage.Backend)
	}
	if cfg.Strain.DefaultResistance != 0.5 {
		t.Errorf("default resistance = %v, want 0.5", cfg.Strain.DefaultResistance)
	}
	if cfg.Decay.Interval() != 24*time.Hour {
		t.Errorf("decay interval = %v, want 24h", cfg.Decay.Interval())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5002 {
		t.Errorf("port = %d, want default 5002", cfg.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  bind: 0.0.0.0
  port: 8080
storage:
  backend: sqlite
  path: /tmp/eidolon.db
strain:
  default_resistance: 0.3
decay:
  interval_hours: 6
log_level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.ListenAddr(); got != "0.0.0.0:8080" {
		t.Errorf("listen addr = %q, want 0.0.0.0:8080", got)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Strain.DefaultResistance != 0.3 {
		t.Errorf("default resistance = %v, want 0.3", cfg.Strain.DefaultResistance)
	}
	if cfg.Decay.Interval() != 6*time.Hour {
		t.Errorf("decay interval = %v, want 6h", cfg.Decay.Interval())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}

	// Fields absent from the file keep their defaults.
	if cfg.Strain.MaxPropagationDepth != 3 {
		t.Errorf("max propagation depth = %d, want default 3", cfg.Strain.MaxPropagationDepth)
	}
}

func TestBadYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
