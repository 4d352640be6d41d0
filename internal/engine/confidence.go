package engine

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/project-eidolon/eidolon/internal/graph"
	"github.com/project-eidolon/eidolon/internal/strain"
)

// ConfidenceScore summarizes an entity's strain tuple as [0,1]
// component scores plus a weighted overall score.
type ConfidenceScore struct {
	EntityID        string  `json:"entity_id"`
	AmplitudeScore  float64 `json:"amplitude_score"`
	ResistanceScore float64 `json:"resistance_score"`
	FrequencyScore  float64 `json:"frequency_score"`
	OverallScore    float64 `json:"overall_score"`
}

// ConfidenceScoreFor derives the confidence score for an entity, or
// graph.ErrNotFound if the id is absent. Scores are cached per entity
// and recomputed lazily after any write touches the entity; calling
// twice without an intervening mutation returns identical results.
func (e *Engine) ConfidenceScoreFor(entityID string) (*ConfidenceScore, error) {
	if cached, ok := e.cache.Get(entityID); ok {
		score := cached.(ConfidenceScore)
		cacheHits.Inc()
		return &score, nil
	}

	ent, ok := e.store.GetEntity(entityID)
	if !ok {
		return nil, graph.ErrNotFound
	}
	cacheMisses.Inc()

	score := scoreFromStrain(entityID, ent.Strain, e.params)
	e.cache.Set(entityID, score, gocache.DefaultExpiration)
	return &score, nil
}

func scoreFromStrain(entityID string, d strain.Data, p strain.Params) ConfidenceScore {
	amplitudeScore := strain.Clamp01(d.Amplitude)
	resistanceScore := strain.Clamp01(1 - d.Resistance)

	var frequencyScore float64
	if p.FrequencyNorm > 0 {
		frequencyScore = strain.Clamp01(float64(d.Frequency) / p.FrequencyNorm)
	}

	totalWeight := p.AmplitudeWeight + p.ResistanceWeight + p.FrequencyWeight
	var overall float64
	if totalWeight > 0 {
		overall = (amplitudeScore*p.AmplitudeWeight +
			resistanceScore*p.ResistanceWeight +
			frequencyScore*p.FrequencyWeight) / totalWeight
	}

	return ConfidenceScore{
		EntityID:        entityID,
		AmplitudeScore:  amplitudeScore,
		ResistanceScore: resistanceScore,
		FrequencyScore:  frequencyScore,
		OverallScore:    strain.Clamp01(overall),
	}
}
