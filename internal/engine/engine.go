// Package engine composes the graph store, the strain cache, and the
// strain math into the surface consumed by orchestrators: confidence
// scoring, strain propagation, dissonance detection, and the
// strain-aware query operations.
package engine

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/project-eidolon/eidolon/internal/graph"
	"github.com/project-eidolon/eidolon/internal/strain"
)

// Engine is the single entry point over one graph Store. Safe for
// concurrent use; the store serializes writers, and the confidence
// cache is invalidated through the store's write path.
type Engine struct {
	store  *graph.Store
	params strain.Params
	cache  *gocache.Cache
	log    *logrus.Logger
	stopCh chan struct{}
}

// New creates an Engine over the store and registers the cache
// invalidation hook. Call before sharing the store across goroutines.
func New(store *graph.Store, params strain.Params, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	e := &Engine{
		store:  store,
		params: params,
		// The cache is pull-based: entries are dropped on write and
		// recomputed on the next read. The TTL is only a safety net.
		cache:  gocache.New(30*time.Minute, time.Hour),
		log:    log,
		stopCh: make(chan struct{}),
	}
	store.SetInvalidateHook(e.invalidateScore)
	return e
}

// Store exposes the underlying graph store for CRUD operations.
func (e *Engine) Store() *graph.Store {
	return e.store
}

// Params returns the engine's strain tuning.
func (e *Engine) Params() strain.Params {
	return e.params
}

func (e *Engine) invalidateScore(entityID string) {
	e.cache.Delete(entityID)
	cacheInvalidations.Inc()
}

// Propagate pushes strain outward from the seed entity, bounded by
// maxDepth (<= 0 uses the configured default). Returns every amplitude
// change applied, for observability by the caller.
func (e *Engine) Propagate(seedID string, maxDepth int) ([]graph.StrainDelta, error) {
	deltas, err := e.store.PropagateStrain(seedID, maxDepth)
	if err != nil {
		return nil, err
	}
	propagationPasses.Inc()
	propagationDeltas.Add(float64(len(deltas)))
	e.log.WithFields(logrus.Fields{
		"seed":   seedID,
		"depth":  maxDepth,
		"deltas": len(deltas),
	}).Debug("strain propagation pass")
	return deltas, nil
}

// DecayPass recomputes amplitudes from elapsed time across the whole
// graph. Returns the number of entities whose amplitude dropped.
func (e *Engine) DecayPass() (int, error) {
	changed, err := e.store.DecayAll(time.Now().UTC())
	if err != nil {
		return 0, err
	}
	decayRuns.Inc()
	if changed > 0 {
		e.log.WithField("changed", changed).Info("strain decay pass")
	}
	return changed, nil
}

// StartDecayTimer runs a decay pass now and then on every tick until
// Stop is called.
func (e *Engine) StartDecayTimer(interval time.Duration) {
	if _, err := e.DecayPass(); err != nil {
		e.log.WithError(err).Error("decay pass failed")
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := e.DecayPass(); err != nil {
					e.log.WithError(err).Error("decay pass failed")
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
