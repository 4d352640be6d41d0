package engine

import (
	"github.com/project-eidolon/eidolon/internal/graph"
	"github.com/project-eidolon/eidolon/internal/strain"
)

// NeighborFlow pairs a neighbor entity id with the strain flow the
// seed would push toward it. Flows are derived on demand and never
// persisted.
type NeighborFlow struct {
	NeighborID string      `json:"neighbor_id"`
	Flow       strain.Flow `json:"flow"`
}

// NeighborFlows computes the outgoing flow from an entity to each of
// its neighbors, one edge lookup per neighbor. The list feeds the
// interference diagnostic; computing flows once and scoring pairs over
// the list avoids the quadratic recomputation trap.
func (e *Engine) NeighborFlows(entityID string) ([]NeighborFlow, error) {
	seed, ok := e.store.GetEntity(entityID)
	if !ok {
		return nil, graph.ErrNotFound
	}

	var flows []NeighborFlow
	for _, rel := range e.store.Relationships(entityID) {
		neighborID := rel.ToID
		if neighborID == entityID {
			neighborID = rel.FromID
		}
		neighbor, ok := e.store.GetEntity(neighborID)
		if !ok {
			continue
		}
		flow := strain.ComputeFlow(seed.Strain, neighbor.Strain, rel.Strain.Resistance)
		if flow.Amount <= 0 {
			continue
		}
		flows = append(flows, NeighborFlow{NeighborID: neighborID, Flow: flow})
	}
	return flows, nil
}

// MaxInterference is a diagnostic over a precomputed flow list: the
// strongest pairwise interference, i.e. how much parallel strain is
// leaving through aligned directions. Zero for fewer than two flows.
func MaxInterference(flows []NeighborFlow) float64 {
	var max float64
	for i := 0; i < len(flows); i++ {
		for j := i + 1; j < len(flows); j++ {
			if v := strain.Interference(flows[i].Flow, flows[j].Flow); v > max {
				max = v
			}
		}
	}
	return max
}
