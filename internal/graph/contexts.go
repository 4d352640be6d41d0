package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/project-eidolon/eidolon/internal/storage"
)

// CreateContext adds a named grouping with no members.
func (s *Store) CreateContext(name, description string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Context{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		EntityIDs:   []string{},
		CreatedAt:   time.Now().UTC(),
	}

	err := s.persist(func(txn storage.Txn) error {
		return putJSON(txn, colContexts, c.ID, c)
	})
	if err != nil {
		return nil, err
	}

	s.contexts[c.ID] = c
	return c.clone(), nil
}

// GetContext returns a copy of the context, or false if absent.
func (s *Store) GetContext(id string) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[id]
	if !ok {
		return nil, false
	}
	return c.clone(), true
}

// ListContexts returns copies of all contexts, sorted by id.
func (s *Store) ListContexts() []Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Context, 0, len(s.contexts))
	for _, c := range s.contexts {
		out = append(out, *c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddEntityToContext records context membership and bumps the entity's
// strain frequency by one. Adding an entity to a context it is already
// in is a no-op: frequency counts distinct contexts. Both sides of the
// membership commit in one transaction.
func (s *Store) AddEntityToContext(contextID, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[contextID]
	if !ok {
		return fmt.Errorf("%w: context %q", ErrNotFound, contextID)
	}
	e, ok := s.entities[entityID]
	if !ok {
		return fmt.Errorf("%w: entity %q", ErrNotFound, entityID)
	}

	for _, id := range c.EntityIDs {
		if id == entityID {
			return nil
		}
	}

	nextCtx := c.clone()
	nextCtx.EntityIDs = append(nextCtx.EntityIDs, entityID)

	nextEnt := e.clone()
	nextEnt.Strain.Frequency++
	nextEnt.Contexts = append(nextEnt.Contexts, contextID)
	nextEnt.ModifiedAt = time.Now().UTC()

	err := s.persist(func(txn storage.Txn) error {
		if err := putJSON(txn, colContexts, nextCtx.ID, nextCtx); err != nil {
			return err
		}
		return putJSON(txn, colEntities, nextEnt.ID, nextEnt)
	})
	if err != nil {
		return err
	}

	s.contexts[contextID] = nextCtx
	s.entities[entityID] = nextEnt
	s.invalidate(entityID)
	return nil
}
