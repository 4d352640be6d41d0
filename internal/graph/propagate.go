package graph

import (
	"time"

	"github.com/project-eidolon/eidolon/internal/storage"
	"github.com/project-eidolon/eidolon/internal/strain"
)

// PropagateStrain pushes strain outward from the seed entity through
// its relationship edges, breadth-first, bounded by maxDepth. A visited
// set keyed by entity id guarantees termination on cyclic graphs; the
// depth limit alone is not enough because a short cycle could revisit
// nodes unboundedly within one pass. Reaching the depth limit is a
// normal stop, not an error.
//
// At each traversed edge the flow uses the edge's own resistance as
// distance resistance; a non-zero flow is added to the neighbor's
// amplitude (clamped). The pass holds the exclusive lock for its whole
// duration and commits every amplitude change in one transaction.
//
// The returned deltas list every amplitude change applied, in
// application order, for observability by the caller.
func (s *Store) PropagateStrain(seedID string, maxDepth int) ([]StrainDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[seedID]; !ok {
		return nil, ErrNotFound
	}
	if maxDepth <= 0 {
		maxDepth = s.params.MaxPropagationDepth
	}

	type queued struct {
		id    string
		depth int
	}

	visited := map[string]bool{seedID: true}
	queue := []queued{{id: seedID, depth: 0}}
	changed := map[string]*Entity{}
	var deltas []StrainDelta
	now := time.Now().UTC()

	current := func(id string) *Entity {
		if e, ok := changed[id]; ok {
			return e
		}
		return s.entities[id]
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node := current(cur.id)

		for relID := range s.relsByEntity[cur.id] {
			rel := s.relationships[relID]
			neighborID := rel.ToID
			if neighborID == cur.id {
				neighborID = rel.FromID
			}
			if visited[neighborID] {
				continue
			}
			neighbor := current(neighborID)

			flow := strain.ComputeFlow(node.Strain, neighbor.Strain, rel.Strain.Resistance)
			if flow.Amount > 0 {
				next := neighbor
				if _, dirty := changed[neighborID]; !dirty {
					next = neighbor.clone()
					changed[neighborID] = next
				}
				next.Strain.Amplitude = strain.Clamp01(next.Strain.Amplitude + flow.Amount)
				next.Strain.Direction = flow.Direction
				next.ModifiedAt = now
				deltas = append(deltas, StrainDelta{EntityID: neighborID, Amount: flow.Amount})
			}

			visited[neighborID] = true
			if cur.depth < maxDepth {
				queue = append(queue, queued{id: neighborID, depth: cur.depth + 1})
			}
		}
	}

	if len(changed) == 0 {
		return deltas, nil
	}

	err := s.persist(func(txn storage.Txn) error {
		for _, e := range changed {
			if err := putJSON(txn, colEntities, e.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id, e := range changed {
		s.entities[id] = e
		s.invalidate(id)
	}
	return deltas, nil
}

// NeighborsWithin returns every entity reachable from the seed within
// maxHops relationship edges, excluding the seed itself, using the same
// visited-set cycle guard as propagation. Results are in breadth-first
// discovery order.
func (s *Store) NeighborsWithin(seedID string, maxHops int) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entities[seedID]; !ok {
		return nil, ErrNotFound
	}
	if maxHops <= 0 {
		maxHops = s.params.MaxPropagationDepth
	}

	type queued struct {
		id    string
		depth int
	}

	visited := map[string]bool{seedID: true}
	queue := []queued{{id: seedID, depth: 0}}
	var out []Entity

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxHops {
			continue
		}
		for relID := range s.relsByEntity[cur.id] {
			rel := s.relationships[relID]
			neighborID := rel.ToID
			if neighborID == cur.id {
				neighborID = rel.FromID
			}
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			out = append(out, *s.entities[neighborID].clone())
			queue = append(queue, queued{id: neighborID, depth: cur.depth + 1})
		}
	}
	return out, nil
}
