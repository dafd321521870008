// ABOUTME: Argument graphs layered over knowledge graph entities
// ABOUTME: Nodes and typed edges form a directed graph; cycles are allowed
package models

import "time"

// NodeType is the rhetorical role of an argument node
type NodeType string

const (
	NodePremise    NodeType = "premise"
	NodeInference  NodeType = "inference"
	NodeConclusion NodeType = "conclusion"
	NodeEvidence   NodeType = "evidence"
	NodeObjection  NodeType = "objection"
)

// NodeTypes lists every valid node type
var NodeTypes = []NodeType{NodePremise, NodeInference, NodeConclusion, NodeEvidence, NodeObjection}

// Valid reports whether t is a known node type
func (t NodeType) Valid() bool {
	for _, v := range NodeTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ConnectionType labels a directed edge between argument nodes
type ConnectionType string

const (
	ConnSupports    ConnectionType = "supports"
	ConnContradicts ConnectionType = "contradicts"
	ConnLeadsTo     ConnectionType = "leads_to"
	ConnEvidenceFor ConnectionType = "evidence_for"
)

// ConnectionTypes lists every valid connection type
var ConnectionTypes = []ConnectionType{ConnSupports, ConnContradicts, ConnLeadsTo, ConnEvidenceFor}

// Valid reports whether t is a known connection type
func (t ConnectionType) Valid() bool {
	for _, v := range ConnectionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ArgumentSequence groups the nodes and connections of one argument
type ArgumentSequence struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	EntityIDs   []string  `json:"entity_ids" yaml:"entity_ids"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Position is a manual 2D layout coordinate stored as given
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// ArgumentNode is a premise, inference, conclusion, evidence or objection
type ArgumentNode struct {
	ID         string   `json:"id" yaml:"id"`
	SequenceID string   `json:"sequence_id" yaml:"sequence_id"`
	NodeType   NodeType `json:"node_type" yaml:"node_type"`
	Content    string   `json:"content" yaml:"content"`
	EntityID   string   `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	Position   Position `json:"position" yaml:"position"`
}

// ArgumentConnection is a typed directed edge inside one sequence
type ArgumentConnection struct {
	ID             string         `json:"id" yaml:"id"`
	SequenceID     string         `json:"sequence_id" yaml:"sequence_id"`
	FromNodeID     string         `json:"from_node_id" yaml:"from_node_id"`
	ToNodeID       string         `json:"to_node_id" yaml:"to_node_id"`
	ConnectionType ConnectionType `json:"connection_type" yaml:"connection_type"`
	Strength       float64        `json:"strength" yaml:"strength"`
}

// ArgumentGraph is the exported {nodes, connections} shape of a sequence
type ArgumentGraph struct {
	Sequence    ArgumentSequence     `json:"sequence" yaml:"sequence"`
	Nodes       []ArgumentNode       `json:"nodes" yaml:"nodes"`
	Connections []ArgumentConnection `json:"connections" yaml:"connections"`
}
