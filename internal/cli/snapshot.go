package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the graph as a JSON snapshot",
	Long:  "Export writes the full graph (entities, relationships, contexts, strain state) as JSON to the given file, or to stdout when no file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the graph from a JSON snapshot",
	Long:  "Import validates the snapshot and atomically replaces the current graph with its contents. The existing graph is discarded.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	raw, err := store.ExportJSON()
	if err != nil {
		return fmt.Errorf("export graph: %w", err)
	}

	if len(args) == 0 {
		fmt.Println(string(raw))
		return nil
	}
	if err := os.WriteFile(args[0], raw, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "exported %d entities, %d relationships to %s\n",
		store.EntityCount(), store.RelationshipCount(), args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	store, kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	if err := store.ImportJSON(raw); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "imported %d entities, %d relationships from %s\n",
		store.EntityCount(), store.RelationshipCount(), args[0])
	return nil
}
