package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	propagationPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_propagation_passes_total",
		Help: "Number of strain propagation passes run.",
	})
	propagationDeltas = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_propagation_deltas_total",
		Help: "Number of per-entity amplitude changes applied by propagation.",
	})
	decayRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_decay_passes_total",
		Help: "Number of strain decay passes run.",
	})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_confidence_cache_hits_total",
		Help: "Confidence score reads served from the strain cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_confidence_cache_misses_total",
		Help: "Confidence score reads that had to recompute.",
	})
	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_confidence_cache_invalidations_total",
		Help: "Strain cache entries dropped by graph writes.",
	})
	dissonanceChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_dissonance_checks_total",
		Help: "Dissonance detections performed.",
	})
	dissonanceFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eidolon_dissonance_found_total",
		Help: "Dissonance detections that reported a genuine contradiction.",
	})
)
