// Package cli wires the eidolon commands: the API server, snapshot
// import/export, and graph inspection.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/project-eidolon/eidolon/internal/config"
	"github.com/project-eidolon/eidolon/internal/graph"
	"github.com/project-eidolon/eidolon/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "eidolon",
	Short: "Strain-based knowledge graph engine",
	Long:  "Eidolon stores a knowledge graph whose nodes carry strain: a confidence signal that flows along relationships, decays over time, and surfaces contradictions.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	dir, err := config.DefaultDataDir()
	if err != nil {
		return config.Default(), nil
	}
	return config.Load(dir + "/config.yaml")
}

// openKV opens the configured storage backend. The caller owns the
// returned KV and must Close it.
func openKV(cfg config.Config) (storage.KV, error) {
	path := cfg.Storage.Path
	if path == "" && cfg.Storage.Backend != "memory" {
		dir, err := config.DefaultDataDir()
		if err != nil {
			return nil, err
		}
		switch cfg.Storage.Backend {
		case "sqlite":
			path = dir + "/eidolon.db"
		default:
			path = dir + "/graph"
		}
	}

	switch cfg.Storage.Backend {
	case "badger", "":
		return storage.OpenBadger(path)
	case "sqlite":
		return storage.OpenSQLite(path)
	case "memory":
		return storage.OpenBadgerMemory()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openStore opens the backend and loads the graph from it.
func openStore(cfg config.Config) (*graph.Store, storage.KV, error) {
	kv, err := openKV(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	store, err := graph.NewStore(kv, cfg.Strain)
	if err != nil {
		kv.Close()
		return nil, nil, fmt.Errorf("load graph: %w", err)
	}
	return store, kv, nil
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
