// ABOUTME: Observation storage operations for SQLite
// ABOUTME: Observations are append-only notes with source attribution
package sqlite

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/harper/muleta/internal/models"
)

// Observations returns the notes attached to an entity, oldest first
func (s *Store) Observations(ctx context.Context, entityID string) ([]models.Observation, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, entity_id, content, source_type, source_path, confidence, created_at
		FROM observations
		WHERE entity_id = ?
		ORDER BY created_at, id
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var observations []models.Observation
	for rows.Next() {
		var (
			o         models.Observation
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.EntityID, &o.Content, &o.SourceType, &o.SourcePath, &o.Confidence, &createdAt); err != nil {
			return nil, err
		}
		o.CreatedAt = parseTime(createdAt)
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// AddObservation appends a note to an existing entity
func (b *Batch) AddObservation(ctx context.Context, o *models.Observation) error {
	o.Content = strings.TrimSpace(o.Content)
	if o.Content == "" {
		return models.NewValidationError("content", "cannot be empty")
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return models.NewValidationError("confidence", "must be within [0,1]")
	}
	if o.SourceType == "" {
		o.SourceType = "text"
	}
	if o.SourcePath == "" {
		o.SourcePath = "unknown"
	}
	if o.ID == "" {
		o.ID = "obs_" + uuid.New().String()
	}
	o.CreatedAt = b.now()
	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO observations (id, entity_id, content, source_type, source_path, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.EntityID, o.Content, o.SourceType, o.SourcePath, o.Confidence, formatTime(o.CreatedAt))
	return persistErr("insert observation", err)
}

// observationCounts maps entity id to its number of observations
func observationCounts(ctx context.Context, q querier) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT entity_id, COUNT(*) FROM observations GROUP BY entity_id`)
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
