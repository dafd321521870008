// ABOUTME: Argument sequence, node and connection storage for SQLite
// ABOUTME: Stores argument graphs as an arena of nodes plus a typed edge list
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/harper/muleta/internal/models"
)

func scanSequence(row interface{ Scan(...any) error }) (*models.ArgumentSequence, error) {
	var (
		seq       models.ArgumentSequence
		entityIDs string
		createdAt string
	)
	if err := row.Scan(&seq.ID, &seq.Title, &entityIDs, &seq.Description, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entityIDs), &seq.EntityIDs); err != nil {
		return nil, err
	}
	seq.CreatedAt = parseTime(createdAt)
	return &seq, nil
}

func getSequence(ctx context.Context, q querier, id string) (*models.ArgumentSequence, error) {
	seq, err := scanSequence(q.QueryRowContext(ctx, `
		SELECT id, title, entity_ids, description, created_at FROM argument_sequences WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("argument sequence", id)
	}
	return seq, err
}

func scanNode(row interface{ Scan(...any) error }) (*models.ArgumentNode, error) {
	var (
		n        models.ArgumentNode
		nodeType string
		entityID sql.NullString
	)
	if err := row.Scan(&n.ID, &n.SequenceID, &nodeType, &n.Content, &entityID, &n.Position.X, &n.Position.Y); err != nil {
		return nil, err
	}
	n.NodeType = models.NodeType(nodeType)
	if entityID.Valid {
		n.EntityID = entityID.String
	}
	return &n, nil
}

const nodeColumns = `id, sequence_id, node_type, content, entity_id, position_x, position_y`

func getNode(ctx context.Context, q querier, id string) (*models.ArgumentNode, error) {
	n, err := scanNode(q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM argument_nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("argument node", id)
	}
	return n, err
}

// GetSequence retrieves an argument sequence by id
func (s *Store) GetSequence(ctx context.Context, id string) (*models.ArgumentSequence, error) {
	return getSequence(ctx, s.db.conn, id)
}

// ListSequences returns every argument sequence, newest first
func (s *Store) ListSequences(ctx context.Context) ([]models.ArgumentSequence, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, title, entity_ids, description, created_at FROM argument_sequences
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var sequences []models.ArgumentSequence
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		sequences = append(sequences, *seq)
	}
	return sequences, rows.Err()
}

// GetNode retrieves an argument node by id
func (s *Store) GetNode(ctx context.Context, id string) (*models.ArgumentNode, error) {
	return getNode(ctx, s.db.conn, id)
}

// ArgumentGraph loads a sequence with all of its nodes and connections
func (s *Store) ArgumentGraph(ctx context.Context, sequenceID string) (*models.ArgumentGraph, error) {
	seq, err := s.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	graph := &models.ArgumentGraph{
		Sequence:    *seq,
		Nodes:       []models.ArgumentNode{},
		Connections: []models.ArgumentConnection{},
	}

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+nodeColumns+` FROM argument_nodes WHERE sequence_id = ? ORDER BY rowid
	`, sequenceID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		graph.Nodes = append(graph.Nodes, *n)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.conn.QueryContext(ctx, `
		SELECT id, sequence_id, from_node_id, to_node_id, connection_type, strength
		FROM argument_connections WHERE sequence_id = ? ORDER BY rowid
	`, sequenceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			c        models.ArgumentConnection
			connType string
		)
		if err := rows.Scan(&c.ID, &c.SequenceID, &c.FromNodeID, &c.ToNodeID, &connType, &c.Strength); err != nil {
			return nil, err
		}
		c.ConnectionType = models.ConnectionType(connType)
		graph.Connections = append(graph.Connections, c)
	}
	return graph, rows.Err()
}

// GetSequence reads a sequence inside the batch
func (b *Batch) GetSequence(ctx context.Context, id string) (*models.ArgumentSequence, error) {
	seq, err := getSequence(ctx, b.tx, id)
	return seq, persistErr("get sequence", err)
}

// GetNode reads a node inside the batch
func (b *Batch) GetNode(ctx context.Context, id string) (*models.ArgumentNode, error) {
	n, err := getNode(ctx, b.tx, id)
	return n, persistErr("get node", err)
}

// CreateSequence inserts an argument sequence
func (b *Batch) CreateSequence(ctx context.Context, seq *models.ArgumentSequence) error {
	if seq.EntityIDs == nil {
		seq.EntityIDs = []string{}
	}
	entityIDs, err := json.Marshal(seq.EntityIDs)
	if err != nil {
		return models.NewValidationError("entity_ids", err.Error())
	}
	if seq.ID == "" {
		seq.ID = "seq_" + uuid.New().String()
	}
	seq.CreatedAt = b.now()
	_, err = b.tx.ExecContext(ctx, `
		INSERT INTO argument_sequences (id, title, entity_ids, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, seq.ID, seq.Title, string(entityIDs), seq.Description, formatTime(seq.CreatedAt))
	return persistErr("insert sequence", err)
}

// CreateNode inserts an argument node
func (b *Batch) CreateNode(ctx context.Context, n *models.ArgumentNode) error {
	if n.ID == "" {
		n.ID = "node_" + uuid.New().String()
	}
	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO argument_nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.SequenceID, string(n.NodeType), n.Content, nullString(n.EntityID), n.Position.X, n.Position.Y)
	return persistErr("insert node", err)
}

// CreateConnection inserts a typed edge between two nodes
func (b *Batch) CreateConnection(ctx context.Context, c *models.ArgumentConnection) error {
	if c.ID == "" {
		c.ID = "conn_" + uuid.New().String()
	}
	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO argument_connections (id, sequence_id, from_node_id, to_node_id, connection_type, strength)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.SequenceID, c.FromNodeID, c.ToNodeID, string(c.ConnectionType), c.Strength)
	return persistErr("insert connection", err)
}
