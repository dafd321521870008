// ABOUTME: Knowledge gap storage for SQLite
// ABOUTME: Gaps are keyed by (entity, gap type) and updated in place on re-analysis
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/harper/muleta/internal/models"
)

// EntityEvidence summarizes how well an entity is supported by the graph
type EntityEvidence struct {
	EntityID     string
	Name         string
	Observations int
	Relations    int
}

// EntityEvidenceCounts returns observation and relation counts for every entity
func (s *Store) EntityEvidenceCounts(ctx context.Context) ([]EntityEvidence, error) {
	entities, err := s.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	observations, err := observationCounts(ctx, s.db.conn)
	if err != nil {
		return nil, err
	}
	relations, err := relationCounts(ctx, s.db.conn)
	if err != nil {
		return nil, err
	}
	evidence := make([]EntityEvidence, 0, len(entities))
	for _, e := range entities {
		evidence = append(evidence, EntityEvidence{
			EntityID:     e.ID,
			Name:         e.Name,
			Observations: observations[e.ID],
			Relations:    relations[e.ID],
		})
	}
	return evidence, nil
}

// UpsertGap inserts a gap or updates confidence, suggestion and source of the
// existing (entity, gap type) row. The resolved flag is never touched here.
func (b *Batch) UpsertGap(ctx context.Context, g *models.KnowledgeGap) error {
	if !g.GapType.Valid() {
		return models.NewValidationError("gap_type", "unknown gap type "+string(g.GapType))
	}
	if g.Confidence < 0 || g.Confidence > 1 {
		return models.NewValidationError("confidence", "must be within [0,1]")
	}
	now := b.now()
	g.UpdatedAt = now
	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO knowledge_gaps (id, entity_id, gap_type, confidence, identified_from, suggestion, resolved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(entity_id, gap_type) DO UPDATE SET
			confidence = excluded.confidence,
			identified_from = excluded.identified_from,
			suggestion = excluded.suggestion,
			updated_at = excluded.updated_at
	`, "gap_"+uuid.New().String(), g.EntityID, string(g.GapType), g.Confidence, g.IdentifiedFrom, g.Suggestion,
		formatTime(now), formatTime(now))
	if err != nil {
		return persistErr("upsert gap", err)
	}

	var resolved int
	var createdAt string
	err = b.tx.QueryRowContext(ctx, `
		SELECT resolved, created_at FROM knowledge_gaps WHERE entity_id = ? AND gap_type = ?
	`, g.EntityID, string(g.GapType)).Scan(&resolved, &createdAt)
	if err != nil {
		return persistErr("read gap", err)
	}
	g.Resolved = resolved == 1
	g.CreatedAt = parseTime(createdAt)
	return nil
}

const gapSelect = `
	SELECT g.entity_id, e.name, g.gap_type, g.confidence, g.identified_from, g.suggestion,
	       g.resolved, g.created_at, g.updated_at
	FROM knowledge_gaps g
	JOIN entities e ON e.id = g.entity_id`

func scanGaps(rows *sql.Rows) ([]models.KnowledgeGap, error) {
	defer func() { _ = rows.Close() }()
	var gaps []models.KnowledgeGap
	for rows.Next() {
		var (
			g                    models.KnowledgeGap
			gapType              string
			resolved             int
			createdAt, updatedAt string
		)
		if err := rows.Scan(&g.EntityID, &g.EntityName, &gapType, &g.Confidence, &g.IdentifiedFrom,
			&g.Suggestion, &resolved, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		g.GapType = models.GapType(gapType)
		g.Resolved = resolved == 1
		g.CreatedAt = parseTime(createdAt)
		g.UpdatedAt = parseTime(updatedAt)
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// ListGaps returns gaps ordered by confidence, optionally including resolved ones
func (s *Store) ListGaps(ctx context.Context, includeResolved bool) ([]models.KnowledgeGap, error) {
	query := gapSelect
	if !includeResolved {
		query += ` WHERE g.resolved = 0`
	}
	query += ` ORDER BY g.confidence DESC, e.canonical_name ASC, g.gap_type ASC`
	rows, err := s.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanGaps(rows)
}

// GetGap retrieves the gap row for (entity, gap type)
func (s *Store) GetGap(ctx context.Context, entityID string, gapType models.GapType) (*models.KnowledgeGap, error) {
	rows, err := s.db.conn.QueryContext(ctx, gapSelect+` WHERE g.entity_id = ? AND g.gap_type = ?`, entityID, string(gapType))
	if err != nil {
		return nil, err
	}
	gaps, err := scanGaps(rows)
	if err != nil {
		return nil, err
	}
	if len(gaps) == 0 {
		return nil, models.NotFound("knowledge gap", entityID+"/"+string(gapType))
	}
	return &gaps[0], nil
}

// ResolveGap marks a gap as resolved after targeted study
func (s *Store) ResolveGap(ctx context.Context, entityID string, gapType models.GapType) error {
	batch, err := s.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Rollback() }()

	res, err := batch.tx.ExecContext(ctx, `
		UPDATE knowledge_gaps SET resolved = 1, updated_at = ? WHERE entity_id = ? AND gap_type = ?
	`, formatTime(batch.now()), entityID, string(gapType))
	if err != nil {
		return persistErr("resolve gap", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFound("knowledge gap", entityID+"/"+string(gapType))
	}
	return batch.Commit()
}

// CountGaps returns the number of gap rows, resolved or not
func (s *Store) CountGaps(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_gaps`).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return n, nil
}
