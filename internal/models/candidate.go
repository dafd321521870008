// ABOUTME: Untrusted candidate entities and relations produced by extractors
// ABOUTME: Candidates are resolved against the graph by the normalizer
package models

// CandidateEntity is an extractor's proposal for a graph node
type CandidateEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CandidateRelation is an extractor's proposal for a graph edge
type CandidateRelation struct {
	FromName string `json:"from"`
	ToName   string `json:"to"`
	Type     string `json:"type"`
	Evidence string `json:"evidence"`
}

// CandidateObservation is a note about an entity named in the same payload
// or already in the graph
type CandidateObservation struct {
	EntityName string  `json:"entity"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Candidates is one extraction payload
type Candidates struct {
	Entities     []CandidateEntity      `json:"entities"`
	Relations    []CandidateRelation    `json:"relations"`
	Observations []CandidateObservation `json:"observations,omitempty"`
}
