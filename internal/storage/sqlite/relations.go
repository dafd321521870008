// ABOUTME: Relation storage operations for SQLite
// ABOUTME: Validates endpoints and self-loops before inserting directed edges
package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/harper/muleta/internal/models"
)

const relationColumns = `id, from_entity_id, to_entity_id, relation_type, strength, evidence, created_at`

func scanRelations(rows *sql.Rows) ([]models.Relation, error) {
	defer func() { _ = rows.Close() }()
	var relations []models.Relation
	for rows.Next() {
		var (
			r         models.Relation
			relType   string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.FromEntityID, &r.ToEntityID, &relType, &r.Strength, &r.Evidence, &createdAt); err != nil {
			return nil, err
		}
		r.Type = models.RelationType(relType)
		r.CreatedAt = parseTime(createdAt)
		relations = append(relations, r)
	}
	return relations, rows.Err()
}

// RelationsOf returns every relation touching the entity in either direction
func (s *Store) RelationsOf(ctx context.Context, entityID string) ([]models.Relation, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+relationColumns+`
		FROM relations
		WHERE from_entity_id = ? OR to_entity_id = ?
		ORDER BY created_at, id
	`, entityID, entityID)
	if err != nil {
		return nil, err
	}
	return scanRelations(rows)
}

// ListRelations returns every relation
func (s *Store) ListRelations(ctx context.Context) ([]models.Relation, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+relationColumns+` FROM relations ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return scanRelations(rows)
}

// FindRelation returns the relation with the exact endpoints and type, or nil
func (b *Batch) FindRelation(ctx context.Context, fromID, toID string, relType models.RelationType) (*models.Relation, error) {
	rows, err := b.tx.QueryContext(ctx, `
		SELECT `+relationColumns+`
		FROM relations
		WHERE from_entity_id = ? AND to_entity_id = ? AND relation_type = ?
		LIMIT 1
	`, fromID, toID, string(relType))
	if err != nil {
		return nil, persistErr("find relation", err)
	}
	relations, err := scanRelations(rows)
	if err != nil {
		return nil, persistErr("find relation", err)
	}
	if len(relations) == 0 {
		return nil, nil
	}
	return &relations[0], nil
}

// CreateRelation inserts a relation after checking both endpoints exist
func (b *Batch) CreateRelation(ctx context.Context, r *models.Relation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, endpoint := range []struct{ field, id string }{
		{"from_entity_id", r.FromEntityID},
		{"to_entity_id", r.ToEntityID},
	} {
		ok, err := entityExists(ctx, b.tx, endpoint.id)
		if err != nil {
			return persistErr("check relation endpoint", err)
		}
		if !ok {
			return models.NewValidationError(endpoint.field, "references unknown entity "+endpoint.id)
		}
	}

	if r.ID == "" {
		r.ID = "rel_" + uuid.New().String()
	}
	r.CreatedAt = b.now()
	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO relations (id, from_entity_id, to_entity_id, relation_type, strength, evidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.FromEntityID, r.ToEntityID, string(r.Type), r.Strength, r.Evidence, formatTime(r.CreatedAt))
	return persistErr("insert relation", err)
}

// UpdateRelationEvidence refreshes evidence and strength of an existing relation
func (b *Batch) UpdateRelationEvidence(ctx context.Context, id, evidence string, strength float64) error {
	if strength < 0 || strength > 1 {
		return models.NewValidationError("strength", "must be within [0,1]")
	}
	res, err := b.tx.ExecContext(ctx, `UPDATE relations SET evidence = ?, strength = ? WHERE id = ?`, evidence, strength, id)
	if err != nil {
		return persistErr("update relation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFound("relation", id)
	}
	return nil
}

// relationCounts maps entity id to the number of relations touching it
func relationCounts(ctx context.Context, q querier) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT entity_id, COUNT(*) FROM (
			SELECT from_entity_id AS entity_id FROM relations
			UNION ALL
			SELECT to_entity_id AS entity_id FROM relations
		) GROUP BY entity_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
