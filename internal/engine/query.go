package engine

import (
	"github.com/project-eidolon/eidolon/internal/graph"
)

// StrainSummary aggregates the strain of a query's result set (never
// the whole graph). High/low counts use the configured thresholds.
type StrainSummary struct {
	AvgAmplitude    float64 `json:"avg_amplitude"`
	MaxAmplitude    float64 `json:"max_amplitude"`
	MinAmplitude    float64 `json:"min_amplitude"`
	HighStrainCount int     `json:"high_strain_count"`
	LowStrainCount  int     `json:"low_strain_count"`
}

// QueryResult is a set of entities plus the strain summary over that set.
type QueryResult struct {
	Entities []graph.Entity `json:"entities"`
	Summary  StrainSummary  `json:"strain_summary"`
}

// Filter is the combined-query predicate set. Nil/empty fields impose
// no constraint; provided fields intersect.
type Filter struct {
	Types           []graph.EntityType `json:"entity_types,omitempty"`
	StrainThreshold *float64           `json:"strain_threshold,omitempty"`
	ContextIDs      []string           `json:"context_ids,omitempty"`
}

func (e *Engine) summarize(entities []graph.Entity) StrainSummary {
	s := StrainSummary{}
	if len(entities) == 0 {
		return s
	}
	s.MinAmplitude = entities[0].Strain.Amplitude
	for _, ent := range entities {
		amp := ent.Strain.Amplitude
		s.AvgAmplitude += amp
		if amp > s.MaxAmplitude {
			s.MaxAmplitude = amp
		}
		if amp < s.MinAmplitude {
			s.MinAmplitude = amp
		}
		if amp >= e.params.HighStrainThreshold {
			s.HighStrainCount++
		}
		if amp <= e.params.LowStrainThreshold {
			s.LowStrainCount++
		}
	}
	s.AvgAmplitude /= float64(len(entities))
	return s
}

func (e *Engine) result(entities []graph.Entity) QueryResult {
	if entities == nil {
		entities = []graph.Entity{}
	}
	return QueryResult{Entities: entities, Summary: e.summarize(entities)}
}

// QueryByType returns all entities of the given type with a strain
// summary over the result set.
func (e *Engine) QueryByType(typ graph.EntityType) (QueryResult, error) {
	if !typ.IsValid() {
		return QueryResult{}, graph.ErrInvalidType
	}
	return e.result(e.store.EntitiesByType(typ)), nil
}

// QueryHighStrain returns entities whose amplitude is at or above the
// threshold.
func (e *Engine) QueryHighStrain(threshold float64) QueryResult {
	var out []graph.Entity
	for _, ent := range e.store.ListEntities() {
		if ent.Strain.Amplitude >= threshold {
			out = append(out, ent)
		}
	}
	return e.result(out)
}

// QueryLowStrain returns entities whose amplitude is at or below the
// threshold.
func (e *Engine) QueryLowStrain(threshold float64) QueryResult {
	var out []graph.Entity
	for _, ent := range e.store.ListEntities() {
		if ent.Strain.Amplitude <= threshold {
			out = append(out, ent)
		}
	}
	return e.result(out)
}

// QueryConnected returns every entity reachable from the seed within
// maxHops edges, excluding the seed itself.
func (e *Engine) QueryConnected(entityID string, maxHops int) (QueryResult, error) {
	entities, err := e.store.NeighborsWithin(entityID, maxHops)
	if err != nil {
		return QueryResult{}, err
	}
	return e.result(entities), nil
}

// CombinedFilter intersects the provided predicates: entity type
// membership, minimum strain amplitude, and context membership (any of
// the listed contexts). Absent predicates impose no constraint.
func (e *Engine) CombinedFilter(f Filter) QueryResult {
	typeSet := map[graph.EntityType]bool{}
	for _, t := range f.Types {
		typeSet[t] = true
	}
	ctxSet := map[string]bool{}
	for _, id := range f.ContextIDs {
		ctxSet[id] = true
	}

	var out []graph.Entity
	for _, ent := range e.store.ListEntities() {
		if len(typeSet) > 0 && !typeSet[ent.Type] {
			continue
		}
		if f.StrainThreshold != nil && ent.Strain.Amplitude < *f.StrainThreshold {
			continue
		}
		if len(ctxSet) > 0 {
			member := false
			for _, cid := range ent.Contexts {
				if ctxSet[cid] {
					member = true
					break
				}
			}
			if !member {
				continue
			}
		}
		out = append(out, ent)
	}
	return e.result(out)
}
