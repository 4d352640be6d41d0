package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/project-eidolon/eidolon/internal/engine"
	"github.com/project-eidolon/eidolon/internal/graph"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print graph and strain statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	eng := engine.New(store, cfg.Strain, log)
	defer eng.Stop()

	fmt.Printf("entities:      %d\n", store.EntityCount())
	fmt.Printf("relationships: %d\n", store.RelationshipCount())
	fmt.Printf("contexts:      %d\n", len(store.ListContexts()))

	for _, typ := range graph.ValidEntityTypes {
		if n := len(store.EntitiesByType(typ)); n > 0 {
			fmt.Printf("  %-8s %d\n", typ, n)
		}
	}

	res := eng.CombinedFilter(engine.Filter{})
	s := res.Summary
	fmt.Printf("strain: avg %.3f, max %.3f, min %.3f\n", s.AvgAmplitude, s.MaxAmplitude, s.MinAmplitude)
	fmt.Printf("  high-strain (>= %.2f): %d\n", cfg.Strain.HighStrainThreshold, s.HighStrainCount)
	fmt.Printf("  low-strain  (<= %.2f): %d\n", cfg.Strain.LowStrainThreshold, s.LowStrainCount)
	return nil
}
