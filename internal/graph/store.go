package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/project-eidolon/eidolon/internal/storage"
	"github.com/project-eidolon/eidolon/internal/strain"
)

var (
	// ErrNotFound reports an absent entity, relationship, or context.
	ErrNotFound = errors.New("graph: not found")
	// ErrInvalidReference reports a relationship naming a non-existent
	// endpoint. Nothing is partially created.
	ErrInvalidReference = errors.New("graph: invalid entity reference")
	// ErrInvalidType reports an unrecognized entity type.
	ErrInvalidType = errors.New("graph: invalid entity type")
)

// KV collections.
const (
	colEntities      = "entities"
	colRelationships = "relationships"
	colContexts      = "contexts"
)

// Store is the single owner of the graph's mutable state. Reads take
// the shared lock, writes the exclusive lock; a propagation pass holds
// the exclusive lock for its whole duration. Every mutation is
// write-through to the KV collaborator (when one is configured) in one
// transaction before the in-memory arena changes, so a storage failure
// leaves the arena untouched.
type Store struct {
	mu     sync.RWMutex
	params strain.Params
	kv     storage.KV

	entities      map[string]*Entity
	relationships map[string]*Relationship
	contexts      map[string]*Context

	byType       map[EntityType]map[string]bool
	relsByEntity map[string]map[string]bool

	// onInvalidate is called (outside persistence, inside the lock) for
	// every entity whose strain or content changed. The engine hooks its
	// confidence cache here.
	onInvalidate func(entityID string)
}

// NewStore creates a Store. kv may be nil for pure in-memory operation;
// otherwise the existing graph is loaded from it.
func NewStore(kv storage.KV, params strain.Params) (*Store, error) {
	s := &Store{
		params:        params,
		kv:            kv,
		entities:      make(map[string]*Entity),
		relationships: make(map[string]*Relationship),
		contexts:      make(map[string]*Context),
		byType:        make(map[EntityType]map[string]bool),
		relsByEntity:  make(map[string]map[string]bool),
	}
	if kv != nil {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetInvalidateHook registers the cache-invalidation callback. Must be
// called before the store is shared across goroutines.
func (s *Store) SetInvalidateHook(fn func(entityID string)) {
	s.onInvalidate = fn
}

func (s *Store) invalidate(id string) {
	if s.onInvalidate != nil {
		s.onInvalidate(id)
	}
}

// load rebuilds the arena and indexes from the KV collaborator.
func (s *Store) load() error {
	return s.kv.View(func(txn storage.Txn) error {
		err := txn.Scan(colEntities, func(key string, value []byte) error {
			var e Entity
			if err := json.Unmarshal(value, &e); err != nil {
				return fmt.Errorf("decode entity %s: %w", key, err)
			}
			s.indexEntity(&e)
			return nil
		})
		if err != nil {
			return err
		}
		err = txn.Scan(colRelationships, func(key string, value []byte) error {
			var r Relationship
			if err := json.Unmarshal(value, &r); err != nil {
				return fmt.Errorf("decode relationship %s: %w", key, err)
			}
			s.indexRelationship(&r)
			return nil
		})
		if err != nil {
			return err
		}
		return txn.Scan(colContexts, func(key string, value []byte) error {
			var c Context
			if err := json.Unmarshal(value, &c); err != nil {
				return fmt.Errorf("decode context %s: %w", key, err)
			}
			s.contexts[c.ID] = &c
			return nil
		})
	})
}

func (s *Store) indexEntity(e *Entity) {
	s.entities[e.ID] = e
	if s.byType[e.Type] == nil {
		s.byType[e.Type] = make(map[string]bool)
	}
	s.byType[e.Type][e.ID] = true
}

func (s *Store) unindexEntity(e *Entity) {
	delete(s.entities, e.ID)
	if m := s.byType[e.Type]; m != nil {
		delete(m, e.ID)
	}
}

func (s *Store) indexRelationship(r *Relationship) {
	s.relationships[r.ID] = r
	for _, id := range []string{r.FromID, r.ToID} {
		if s.relsByEntity[id] == nil {
			s.relsByEntity[id] = make(map[string]bool)
		}
		s.relsByEntity[id][r.ID] = true
	}
}

func (s *Store) unindexRelationship(r *Relationship) {
	delete(s.relationships, r.ID)
	delete(s.relsByEntity[r.FromID], r.ID)
	delete(s.relsByEntity[r.ToID], r.ID)
}

// persist runs fn in one KV transaction, or does nothing without a KV.
func (s *Store) persist(fn func(txn storage.Txn) error) error {
	if s.kv == nil {
		return nil
	}
	return s.kv.Update(fn)
}

func putJSON(txn storage.Txn, collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return txn.Put(collection, key, raw)
}

// slugify derives a stable id from an entity name: lowercase, runs of
// non-alphanumerics collapsed to single underscores.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// CreateEntity adds a new entity with default strain, an empty
// attribute map, and no contexts. The id is a slug of the name,
// deduplicated with a uuid suffix when the slug is already taken.
func (s *Store) CreateEntity(name string, typ EntityType, description string) (*Entity, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := slugify(name)
	if id == "" {
		id = uuid.NewString()
	} else if _, taken := s.entities[id]; taken {
		id = id + "_" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	e := &Entity{
		ID:          id,
		Name:        name,
		Type:        typ,
		Description: description,
		Attributes:  map[string]string{},
		Strain:      strain.NewData(s.params.DefaultResistance),
		Contexts:    []string{},
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	err := s.persist(func(txn storage.Txn) error {
		return putJSON(txn, colEntities, e.ID, e)
	})
	if err != nil {
		return nil, err
	}

	s.indexEntity(e)
	return e.clone(), nil
}

// GetEntity returns a copy of the entity, or false if absent.
func (s *Store) GetEntity(id string) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// UpdateEntity replaces the stored entity with the same id. The strain
// tuple is clamped, frequency cannot decrease (use ResetFrequency for
// that), creation time is preserved, and the modified timestamp is
// refreshed. Returns ErrNotFound if the id is absent; there is no
// upsert path.
func (s *Store) UpdateEntity(e *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entities[e.ID]
	if !ok {
		return ErrNotFound
	}

	next := e.clone()
	next.Strain = next.Strain.Clamped()
	if next.Strain.Frequency < stored.Strain.Frequency {
		next.Strain.Frequency = stored.Strain.Frequency
	}
	next.CreatedAt = stored.CreatedAt
	next.ModifiedAt = time.Now().UTC()

	err := s.persist(func(txn storage.Txn) error {
		return putJSON(txn, colEntities, next.ID, next)
	})
	if err != nil {
		return err
	}

	s.unindexEntity(stored)
	s.indexEntity(next)
	s.invalidate(next.ID)
	return nil
}

// ResetFrequency is the one sanctioned way to lower an entity's
// context frequency back to zero.
func (s *Store) ResetFrequency(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entities[id]
	if !ok {
		return ErrNotFound
	}

	next := stored.clone()
	next.Strain.Frequency = 0
	next.ModifiedAt = time.Now().UTC()

	err := s.persist(func(txn storage.Txn) error {
		return putJSON(txn, colEntities, next.ID, next)
	})
	if err != nil {
		return err
	}

	s.entities[id] = next
	s.invalidate(id)
	return nil
}

// DeleteEntity removes the entity, cascade-deletes every relationship
// touching it, and drops it from all context membership lists. The
// whole cascade commits in one transaction. Returns ErrNotFound if the
// id is absent. Dangling relationship references can never survive
// this call.
func (s *Store) DeleteEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return ErrNotFound
	}

	var doomed []*Relationship
	for relID := range s.relsByEntity[id] {
		doomed = append(doomed, s.relationships[relID])
	}

	var touchedContexts []*Context
	for _, c := range s.contexts {
		for _, eid := range c.EntityIDs {
			if eid == id {
				touchedContexts = append(touchedContexts, c)
				break
			}
		}
	}

	err := s.persist(func(txn storage.Txn) error {
		if err := txn.Delete(colEntities, id); err != nil {
			return err
		}
		for _, r := range doomed {
			if err := txn.Delete(colRelationships, r.ID); err != nil {
				return err
			}
		}
		for _, c := range touchedContexts {
			trimmed := c.clone()
			trimmed.EntityIDs = removeString(trimmed.EntityIDs, id)
			if err := putJSON(txn, colContexts, trimmed.ID, trimmed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range doomed {
		s.unindexRelationship(r)
	}
	delete(s.relsByEntity, id)
	for _, c := range touchedContexts {
		c.EntityIDs = removeString(c.EntityIDs, id)
	}
	s.unindexEntity(e)
	s.invalidate(id)
	return nil
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// CreateRelationship adds a typed edge between two existing entities.
// Both endpoints are validated first; a missing endpoint returns
// ErrInvalidReference and creates nothing. On success one strain-flow
// step runs across the new edge, from the higher-amplitude endpoint
// toward the lower, committed in the same transaction as the edge.
func (s *Store) CreateRelationship(fromID, toID, relType string) (*Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.entities[fromID]
	if !ok {
		return nil, fmt.Errorf("%w: from entity %q", ErrInvalidReference, fromID)
	}
	to, ok := s.entities[toID]
	if !ok {
		return nil, fmt.Errorf("%w: to entity %q", ErrInvalidReference, toID)
	}

	now := time.Now().UTC()
	r := &Relationship{
		ID:         uuid.NewString(),
		FromID:     fromID,
		ToID:       toID,
		Type:       relType,
		Attributes: map[string]string{},
		Strain:     strain.NewData(s.params.DefaultResistance),
		CreatedAt:  now,
		ModifiedAt: now,
	}

	// One local flow step across the new edge. Not a graph-wide pass;
	// callers invoke Propagate for that.
	source, sink := from, to
	if sink.Strain.Amplitude > source.Strain.Amplitude {
		source, sink = sink, source
	}
	flow := strain.ComputeFlow(source.Strain, sink.Strain, r.Strain.Resistance)

	var changed *Entity
	if flow.Amount > 0 {
		changed = sink.clone()
		changed.Strain.Amplitude = strain.Clamp01(changed.Strain.Amplitude + flow.Amount)
		changed.Strain.Direction = flow.Direction
		changed.ModifiedAt = now
	}

	err := s.persist(func(txn storage.Txn) error {
		if err := putJSON(txn, colRelationships, r.ID, r); err != nil {
			return err
		}
		if changed != nil {
			return putJSON(txn, colEntities, changed.ID, changed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.indexRelationship(r)
	if changed != nil {
		s.entities[changed.ID] = changed
		s.invalidate(changed.ID)
	}
	return r.clone(), nil
}

// GetRelationship returns a copy of the relationship, or false if absent.
func (s *Store) GetRelationship(id string) (*Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.relationships[id]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Relationships returns every relationship touching the entity, in
// either direction, sorted by creation time then id.
func (s *Store) Relationships(entityID string) []Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationshipsLocked(entityID, "")
}

// RelationshipsByType returns the entity's relationships filtered by type.
func (s *Store) RelationshipsByType(entityID, relType string) []Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationshipsLocked(entityID, relType)
}

func (s *Store) relationshipsLocked(entityID, relType string) []Relationship {
	var out []Relationship
	for relID := range s.relsByEntity[entityID] {
		r := s.relationships[relID]
		if relType != "" && r.Type != relType {
			continue
		}
		out = append(out, *r.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListEntities returns copies of all entities, sorted by id.
func (s *Store) ListEntities() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntitiesByType returns copies of all entities of the given type,
// sorted by id.
func (s *Store) EntitiesByType(typ EntityType) []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entity
	for id := range s.byType[typ] {
		out = append(out, *s.entities[id].clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListRelationships returns copies of all relationships, sorted by id.
func (s *Store) ListRelationships() []Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Relationship, 0, len(s.relationships))
	for _, r := range s.relationships {
		out = append(out, *r.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntityCount returns the number of entities.
func (s *Store) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// RelationshipCount returns the number of relationships.
func (s *Store) RelationshipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relationships)
}

// TouchEntity records an access: bumps the access count, refreshes the
// last-accessed timestamp, and recomputes amplitude with zero elapsed
// time (the retrieval boost).
func (s *Store) TouchEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entities[id]
	if !ok {
		return ErrNotFound
	}

	next := stored.clone()
	next.Strain.AccessCount++
	next.Strain.LastAccessed = time.Now().UTC()
	next.Strain.Amplitude = strain.Amplitude(
		next.Strain.AccessCount, s.params.BaseAmplitude, s.params.DecayRate, 0)

	err := s.persist(func(txn storage.Txn) error {
		return putJSON(txn, colEntities, next.ID, next)
	})
	if err != nil {
		return err
	}

	s.entities[id] = next
	s.invalidate(id)
	return nil
}

// DecayAll recomputes every entity's amplitude from its access count
// and the time elapsed since last access. Amplitude only ever
// decreases in a decay pass. Returns the number of entities changed;
// the whole pass commits in one transaction.
func (s *Store) DecayAll(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []*Entity
	for _, e := range s.entities {
		elapsed := now.Sub(e.Strain.LastAccessed).Hours()
		if elapsed <= 0 {
			continue
		}
		decayed := strain.Amplitude(
			e.Strain.AccessCount, s.params.BaseAmplitude, s.params.DecayRate, elapsed)
		if decayed >= e.Strain.Amplitude {
			continue
		}
		next := e.clone()
		next.Strain.Amplitude = decayed
		changed = append(changed, next)
	}
	if len(changed) == 0 {
		return 0, nil
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
		return 0, err
	}

	for _, e := range changed {
		s.entities[e.ID] = e
		s.invalidate(e.ID)
	}
	return len(changed), nil
}
