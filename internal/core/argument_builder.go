// ABOUTME: ArgumentBuilder assembles premise/inference/conclusion graphs over entities
// ABOUTME: Validates same-sequence endpoints and self-loops; cycles are allowed
package core

import (
	"context"
	"io"
	"strings"

	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
)

// DefaultConnectionStrength is used when a connection omits its strength
const DefaultConnectionStrength = 1.0

// NodeInput describes a node to append to a sequence
type NodeInput struct {
	NodeType models.NodeType
	Content  string
	EntityID string
	Position models.Position
}

// ConnectionInput describes a directed edge between two nodes. A nil
// Strength means DefaultConnectionStrength.
type ConnectionInput struct {
	FromNodeID     string
	ToNodeID       string
	ConnectionType models.ConnectionType
	Strength       *float64
}

// ArgumentBuilder creates and extends argument sequences
type ArgumentBuilder struct {
	store *sqlite.Store
	log   *logger.Logger
}

// NewArgumentBuilder creates an ArgumentBuilder
func NewArgumentBuilder(store *sqlite.Store, log *logger.Logger) *ArgumentBuilder {
	return &ArgumentBuilder{store: store, log: logger.OrNop(log).Component("arguments")}
}

// CreateSequence starts a new argument over the given entities. Duplicate
// ids are dropped, keeping first-seen order.
func (ab *ArgumentBuilder) CreateSequence(ctx context.Context, title string, entityIDs []string, description string) (*models.ArgumentSequence, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.NewValidationError("title", "cannot be empty")
	}

	batch, err := ab.store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = batch.Rollback() }()

	ordered := make([]string, 0, len(entityIDs))
	seen := make(map[string]bool)
	for _, id := range entityIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		ok, err := batch.EntityExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewValidationError("entity_ids", "references unknown entity "+id)
		}
		seen[id] = true
		ordered = append(ordered, id)
	}

	seq := &models.ArgumentSequence{
		Title:       title,
		EntityIDs:   ordered,
		Description: strings.TrimSpace(description),
	}
	if err := batch.CreateSequence(ctx, seq); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	ab.log.Info("argument created", "sequence_id", seq.ID, "entities", len(ordered))
	return seq, nil
}

// AddNode appends a node to a sequence; the position is stored as given
func (ab *ArgumentBuilder) AddNode(ctx context.Context, sequenceID string, in NodeInput) (*models.ArgumentNode, error) {
	if !in.NodeType.Valid() {
		return nil, models.NewValidationError("node_type", "unknown node type "+string(in.NodeType))
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("content", "cannot be empty")
	}

	batch, err := ab.store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = batch.Rollback() }()

	if _, err := batch.GetSequence(ctx, sequenceID); err != nil {
		return nil, err
	}
	if in.EntityID != "" {
		ok, err := batch.EntityExists(ctx, in.EntityID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewValidationError("entity_id", "references unknown entity "+in.EntityID)
		}
	}

	node := &models.ArgumentNode{
		SequenceID: sequenceID,
		NodeType:   in.NodeType,
		Content:    content,
		EntityID:   in.EntityID,
		Position:   in.Position,
	}
	if err := batch.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	return node, nil
}

// Connect adds a typed edge. Both nodes must belong to sequenceID and differ.
func (ab *ArgumentBuilder) Connect(ctx context.Context, sequenceID string, in ConnectionInput) (*models.ArgumentConnection, error) {
	if in.FromNodeID == in.ToNodeID {
		return nil, models.NewValidationError("to_node_id", "self-loops are not allowed")
	}
	if !in.ConnectionType.Valid() {
		return nil, models.NewValidationError("connection_type", "unknown connection type "+string(in.ConnectionType))
	}
	strength := DefaultConnectionStrength
	if in.Strength != nil {
		strength = *in.Strength
	}
	if strength < 0 || strength > 1 {
		return nil, models.NewValidationError("strength", "must be within [0,1]")
	}

	batch, err := ab.store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = batch.Rollback() }()

	if _, err := batch.GetSequence(ctx, sequenceID); err != nil {
		return nil, err
	}
	endpoints := []struct{ field, id string }{
		{"from_node_id", in.FromNodeID},
		{"to_node_id", in.ToNodeID},
	}
	for _, ep := range endpoints {
		node, err := batch.GetNode(ctx, ep.id)
		if err != nil {
			return nil, err
		}
		if node.SequenceID != sequenceID {
			return nil, models.NewValidationError(ep.field, "node "+ep.id+" belongs to another sequence")
		}
	}

	conn := &models.ArgumentConnection{
		SequenceID:     sequenceID,
		FromNodeID:     in.FromNodeID,
		ToNodeID:       in.ToNodeID,
		ConnectionType: in.ConnectionType,
		Strength:       strength,
	}
	if err := batch.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	return conn, nil
}

// Graph returns the sequence with its nodes and connections
func (ab *ArgumentBuilder) Graph(ctx context.Context, sequenceID string) (*models.ArgumentGraph, error) {
	return ab.store.ArgumentGraph(ctx, sequenceID)
}

// Export writes the {nodes, connections} graph as json or yaml
func (ab *ArgumentBuilder) Export(ctx context.Context, w io.Writer, sequenceID, format string) error {
	graph, err := ab.Graph(ctx, sequenceID)
	if err != nil {
		return err
	}
	return sqlite.WriteArgumentGraph(w, graph, format)
}
