// ABOUTME: Entity, Observation and Relation form the personal knowledge graph
// ABOUTME: Includes enum parsing for English and Portuguese extractor vocabularies
package models

import (
	"strings"
	"time"

	"github.com/harper/muleta/internal/normalize"
)

// EntityType classifies a knowledge graph node
type EntityType string

const (
	EntityConcept      EntityType = "concept"
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityOrganization EntityType = "organization"
	EntityTheory       EntityType = "theory"
	EntityEvent        EntityType = "event"
	EntityWork         EntityType = "work"
	EntityTechnology   EntityType = "technology"
	EntityMethod       EntityType = "method"
	EntityUnknown      EntityType = "unknown"
)

// EntityTypes lists every valid entity type
var EntityTypes = []EntityType{
	EntityConcept, EntityPerson, EntityPlace, EntityOrganization, EntityTheory,
	EntityEvent, EntityWork, EntityTechnology, EntityMethod, EntityUnknown,
}

var entityTypeAliases = map[string]EntityType{
	"conceito":     EntityConcept,
	"ideia":        EntityConcept,
	"idea":         EntityConcept,
	"tema":         EntityConcept,
	"assunto":      EntityConcept,
	"topic":        EntityConcept,
	"premissa":     EntityConcept,
	"conclusao":    EntityConcept,
	"problema":     EntityConcept,
	"solucao":      EntityConcept,
	"metrica":      EntityConcept,
	"pessoa":       EntityPerson,
	"lugar":        EntityPlace,
	"organizacao":  EntityOrganization,
	"organisation": EntityOrganization,
	"teoria":       EntityTheory,
	"evento":       EntityEvent,
	"obra":         EntityWork,
	"tecnologia":   EntityTechnology,
	"metodo":       EntityMethod,
	"outro":        EntityUnknown,
	"other":        EntityUnknown,
}

// ParseEntityType maps an extractor label onto an EntityType.
// Empty input returns ok=false; unrecognised labels map to EntityUnknown.
func ParseEntityType(s string) (EntityType, bool) {
	if normalize.Canonical(s) == "" {
		return "", false
	}
	if t, ok := LookupEntityType(s); ok {
		return t, true
	}
	return EntityUnknown, true
}

// LookupEntityType resolves a type name or alias, rejecting anything unrecognised.
// Used for user-supplied filters where a typo should not silently mean "unknown".
func LookupEntityType(s string) (EntityType, bool) {
	key := normalize.Canonical(s)
	for _, t := range EntityTypes {
		if string(t) == key {
			return t, true
		}
	}
	t, ok := entityTypeAliases[key]
	return t, ok
}

// Valid reports whether t is one of the known entity types
func (t EntityType) Valid() bool {
	for _, v := range EntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Entity is a canonical knowledge graph node
type Entity struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CanonicalName string     `json:"canonical_name"`
	Type          EntityType `json:"type"`
	Description   string     `json:"description"`
	NeedsReview   bool       `json:"needs_review"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Observation is an immutable note attached to an entity
type Observation struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	Content    string    `json:"content"`
	SourceType string    `json:"source_type"`
	SourcePath string    `json:"source_path"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// RelationType is the label of a directed edge between entities
type RelationType string

const (
	RelTypeOf      RelationType = "type_of"
	RelPartOf      RelationType = "part_of"
	RelExampleOf   RelationType = "example_of"
	RelCauses      RelationType = "causes"
	RelEffectOf    RelationType = "effect_of"
	RelSupports    RelationType = "supports"
	RelContradicts RelationType = "contradicts"
	RelRelatedTo   RelationType = "related_to"
)

// RelationTypes lists every valid relation type
var RelationTypes = []RelationType{
	RelTypeOf, RelPartOf, RelExampleOf, RelCauses, RelEffectOf,
	RelSupports, RelContradicts, RelRelatedTo,
}

var relationTypeAliases = map[string]RelationType{
	"tipo_de":       RelTypeOf,
	"is_a":          RelTypeOf,
	"parte_de":      RelPartOf,
	"exemplo_de":    RelExampleOf,
	"causa_de":      RelCauses,
	"cause_of":      RelCauses,
	"conduz_a":      RelCauses,
	"leads_to":      RelCauses,
	"efeito_de":     RelEffectOf,
	"apoia":         RelSupports,
	"support":       RelSupports,
	"contradiz":     RelContradicts,
	"contradict":    RelContradicts,
	"relacionado_a": RelRelatedTo,
}

// ParseRelationType maps an extractor label onto a RelationType.
// Empty and unrecognised labels map to RelRelatedTo.
func ParseRelationType(s string) RelationType {
	key := strings.ReplaceAll(normalize.Canonical(s), " ", "_")
	for _, t := range RelationTypes {
		if string(t) == key {
			return t
		}
	}
	if t, ok := relationTypeAliases[key]; ok {
		return t
	}
	return RelRelatedTo
}

// Valid reports whether t is one of the known relation types
func (t RelationType) Valid() bool {
	for _, v := range RelationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Relation is a typed, directed edge between two entities
type Relation struct {
	ID           string       `json:"id"`
	FromEntityID string       `json:"from_entity_id"`
	ToEntityID   string       `json:"to_entity_id"`
	Type         RelationType `json:"type"`
	Strength     float64      `json:"strength"`
	Evidence     string       `json:"evidence"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks the relation invariants that do not need storage access
func (r *Relation) Validate() error {
	if r.FromEntityID == "" {
		return NewValidationError("from_entity_id", "is required")
	}
	if r.ToEntityID == "" {
		return NewValidationError("to_entity_id", "is required")
	}
	if r.FromEntityID == r.ToEntityID {
		return NewValidationError("to_entity_id", "self-relations are not allowed")
	}
	if !r.Type.Valid() {
		return NewValidationError("type", "unknown relation type "+string(r.Type))
	}
	if r.Strength < 0 || r.Strength > 1 {
		return NewValidationError("strength", "must be within [0,1]")
	}
	return nil
}

// Neighborhood is the result of a bounded graph traversal
type Neighborhood struct {
	Root      Entity         `json:"root"`
	Entities  []Entity       `json:"entities"`
	Relations []Relation     `json:"relations"`
	Depth     map[string]int `json:"depth"`
}
