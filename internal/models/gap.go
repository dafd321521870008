// ABOUTME: KnowledgeGap flags a weak area of the graph for targeted study
// ABOUTME: Keyed by (entity, gap type); analysis updates rows in place
package models

import "time"

// GapType classifies a knowledge gap
type GapType string

const (
	GapWeakUnderstanding    GapType = "weak_understanding"
	GapMissingRelations     GapType = "missing_relations"
	GapInsufficientEvidence GapType = "insufficient_evidence"
)

// GapTypes lists every valid gap type
var GapTypes = []GapType{GapWeakUnderstanding, GapMissingRelations, GapInsufficientEvidence}

// Valid reports whether t is a known gap type
func (t GapType) Valid() bool {
	for _, v := range GapTypes {
		if v == t {
			return true
		}
	}
	return false
}

// KnowledgeGap is one flagged weakness for an entity
type KnowledgeGap struct {
	EntityID       string    `json:"entity_id"`
	EntityName     string    `json:"entity_name,omitempty"`
	GapType        GapType   `json:"gap_type"`
	Confidence     float64   `json:"confidence"`
	IdentifiedFrom string    `json:"identified_from"`
	Suggestion     string    `json:"suggestion"`
	Resolved       bool      `json:"resolved"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AssessmentScore is one per-entity signal from the external assessment feed
type AssessmentScore struct {
	EntityID   string  `json:"entity_id"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}
