package graph

import (
	"encoding/json"
	"fmt"

	"github.com/project-eidolon/eidolon/internal/storage"
)

// Snapshot is the JSON bulk load/dump format. Every strain field is
// serialized explicitly so that export → import reproduces an
// identical graph.
type Snapshot struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Contexts      []Context      `json:"contexts,omitempty"`
}

// Export captures the whole graph, deterministically ordered by id.
func (s *Store) Export() Snapshot {
	return Snapshot{
		Entities:      s.ListEntities(),
		Relationships: s.ListRelationships(),
		Contexts:      s.ListContexts(),
	}
}

// ExportJSON renders the snapshot as indented JSON.
func (s *Store) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s.Export(), "", "  ")
}

// Import replaces the entire graph with the snapshot's contents.
// Strain tuples are clamped on the way in; every relationship must
// reference entities present in the same snapshot. The replacement
// commits in one transaction and the previous graph is kept on any
// failure.
func (s *Store) Import(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := make(map[string]*Entity, len(snap.Entities))
	for i := range snap.Entities {
		e := snap.Entities[i].clone()
		if !e.Type.IsValid() {
			return fmt.Errorf("%w: entity %q has type %q", ErrInvalidType, e.ID, e.Type)
		}
		e.Strain = e.Strain.Clamped()
		if e.Attributes == nil {
			e.Attributes = map[string]string{}
		}
		if e.Contexts == nil {
			e.Contexts = []string{}
		}
		entities[e.ID] = e
	}

	relationships := make(map[string]*Relationship, len(snap.Relationships))
	for i := range snap.Relationships {
		r := snap.Relationships[i].clone()
		if _, ok := entities[r.FromID]; !ok {
			return fmt.Errorf("%w: relationship %q from %q", ErrInvalidReference, r.ID, r.FromID)
		}
		if _, ok := entities[r.ToID]; !ok {
			return fmt.Errorf("%w: relationship %q to %q", ErrInvalidReference, r.ID, r.ToID)
		}
		r.Strain = r.Strain.Clamped()
		if r.Attributes == nil {
			r.Attributes = map[string]string{}
		}
		relationships[r.ID] = r
	}

	contexts := make(map[string]*Context, len(snap.Contexts))
	for i := range snap.Contexts {
		c := snap.Contexts[i].clone()
		if c.EntityIDs == nil {
			c.EntityIDs = []string{}
		}
		contexts[c.ID] = c
	}

	err := s.persist(func(txn storage.Txn) error {
		for _, col := range []string{colEntities, colRelationships, colContexts} {
			var stale []string
			if err := txn.Scan(col, func(key string, _ []byte) error {
				stale = append(stale, key)
				return nil
			}); err != nil {
				return err
			}
			for _, key := range stale {
				if err := txn.Delete(col, key); err != nil {
					return err
				}
			}
		}
		for id, e := range entities {
			if err := putJSON(txn, colEntities, id, e); err != nil {
				return err
			}
		}
		for id, r := range relationships {
			if err := putJSON(txn, colRelationships, id, r); err != nil {
				return err
			}
		}
		for id, c := range contexts {
			if err := putJSON(txn, colContexts, id, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for id := range s.entities {
		s.invalidate(id)
	}
	s.entities = make(map[string]*Entity, len(entities))
	s.relationships = make(map[string]*Relationship, len(relationships))
	s.contexts = contexts
	s.byType = make(map[EntityType]map[string]bool)
	s.relsByEntity = make(map[string]map[string]bool)
	for _, e := range entities {
		s.indexEntity(e)
		s.invalidate(e.ID)
	}
	for _, r := range relationships {
		s.indexRelationship(r)
	}
	return nil
}

// ImportJSON parses and imports a JSON snapshot.
func (s *Store) ImportJSON(raw []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return s.Import(snap)
}
