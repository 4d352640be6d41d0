// Package graph owns the knowledge graph's mutable state: entities,
// relationships, and contexts, held in an in-process arena and indexed
// by type and context. All access goes through Store methods behind a
// coarse read-write lock; callers only ever see copies, never interior
// pointers.
package graph

import (
	"time"

	"github.com/project-eidolon/eidolon/internal/strain"
)

// EntityType classifies the kind of entity.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntityPlace   EntityType = "place"
	EntityConcept EntityType = "concept"
	EntityObject  EntityType = "object"
	EntityEvent   EntityType = "event"
)

// ValidEntityTypes is the set of all recognized entity types.
var ValidEntityTypes = []EntityType{
	EntityPerson,
	EntityPlace,
	EntityConcept,
	EntityObject,
	EntityEvent,
}

// IsValid returns true if the entity type is recognized.
func (et EntityType) IsValid() bool {
	for _, t := range ValidEntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Entity is a node in the knowledge graph. Strain fields carry no
// omitempty so snapshots always serialize the full tuple.
type Entity struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        EntityType        `json:"entity_type"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes"`
	Strain      strain.Data       `json:"strain"`
	Contexts    []string          `json:"contexts"`
	CreatedAt   time.Time         `json:"created"`
	ModifiedAt  time.Time         `json:"modified"`
}

func (e *Entity) clone() *Entity {
	c := *e
	c.Attributes = make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		c.Attributes[k] = v
	}
	c.Contexts = append([]string(nil), e.Contexts...)
	return &c
}

// Relationship is a typed, directed edge between two entities. It
// references entities by id only; the store guarantees no relationship
// outlives its endpoints.
type Relationship struct {
	ID         string            `json:"id"`
	FromID     string            `json:"from_entity_id"`
	ToID       string            `json:"to_entity_id"`
	Type       string            `json:"relationship_type"`
	Attributes map[string]string `json:"attributes"`
	Strain     strain.Data       `json:"strain"`
	CreatedAt  time.Time         `json:"created"`
	ModifiedAt time.Time         `json:"modified"`
}

func (r *Relationship) clone() *Relationship {
	c := *r
	c.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	return &c
}

// Context is a named grouping of entities. Adding an entity to a
// context bumps that entity's strain frequency: frequency tracks
// distinct-context membership, not raw access count.
type Context struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EntityIDs   []string  `json:"entity_ids"`
	CreatedAt   time.Time `json:"created"`
}

func (c *Context) clone() *Context {
	cp := *c
	cp.EntityIDs = append([]string(nil), c.EntityIDs...)
	return &cp
}

// StrainDelta records one amplitude change applied during a
// propagation pass, for observability by the caller.
type StrainDelta struct {
	EntityID string  `json:"entity_id"`
	Amount   float64 `json:"amount"`
}
