package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/project-eidolon/eidolon/internal/engine"
	"github.com/project-eidolon/eidolon/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	store, kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	eng := engine.New(store, cfg.Strain, log)
	eng.StartDecayTimer(cfg.Decay.Interval())
	defer eng.Stop()

	srv := server.New(eng, log, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "eidolon serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  backend: %s\n", cfg.Storage.Backend)
		fmt.Fprintf(os.Stderr, "  entities: %d, relationships: %d\n", store.EntityCount(), store.RelationshipCount())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
