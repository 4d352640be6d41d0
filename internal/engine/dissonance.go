package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/project-eidolon/eidolon/internal/graph"
	"github.com/project-eidolon/eidolon/internal/strain"
)

// DetectDissonance compares the attribute maps of two entities and
// returns the contradiction score, or 0.0 when there is no genuine
// contradiction. Strain models disagreement, not generic uncertainty,
// so detection never writes to the graph; callers that want the score
// injected use ApplyDissonance. A negative threshold selects the
// configured default.
func (e *Engine) DetectDissonance(entityA, entityB string, threshold float64) (float64, error) {
	a, ok := e.store.GetEntity(entityA)
	if !ok {
		return 0, graph.ErrNotFound
	}
	b, ok := e.store.GetEntity(entityB)
	if !ok {
		return 0, graph.ErrNotFound
	}
	if threshold < 0 {
		threshold = e.params.DissonanceThreshold
	}

	amount := strain.Dissonance(a.Attributes, b.Attributes, threshold)
	dissonanceChecks.Inc()
	if amount > 0 {
		dissonanceFound.Inc()
		e.log.WithFields(logrus.Fields{
			"entity_a": entityA,
			"entity_b": entityB,
			"amount":   amount,
		}).Info("cognitive dissonance detected")
	}
	return amount, nil
}

// ApplyDissonance injects a detected contradiction into an entity's
// strain by raising its amplitude (clamped). Negative amounts are
// ignored.
func (e *Engine) ApplyDissonance(entityID string, amount float64) error {
	if amount <= 0 {
		return nil
	}
	ent, ok := e.store.GetEntity(entityID)
	if !ok {
		return graph.ErrNotFound
	}
	ent.Strain.Amplitude = strain.Clamp01(ent.Strain.Amplitude + amount)
	return e.store.UpdateEntity(ent)
}
