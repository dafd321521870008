// ABOUTME: Entity storage operations for SQLite
// ABOUTME: Upsert-by-canonical-name, prefix search, type filters and graph traversal
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/normalize"
)

const entityColumns = `id, name, canonical_name, entity_type, description, needs_review, created_at, updated_at`

// EntityEdit is an explicit user edit; nil fields are left untouched
type EntityEdit struct {
	Name        *string
	Type        *models.EntityType
	Description *string
	NeedsReview *bool
}

func scanEntity(row interface{ Scan(...any) error }) (*models.Entity, error) {
	var (
		e                    models.Entity
		entityType           string
		needsReview          int
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.CanonicalName, &entityType, &e.Description,
		&needsReview, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Type = models.EntityType(entityType)
	e.NeedsReview = needsReview == 1
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func scanEntities(rows *sql.Rows) ([]models.Entity, error) {
	defer func() { _ = rows.Close() }()
	var entities []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

func getEntity(ctx context.Context, q querier, id string) (*models.Entity, error) {
	e, err := scanEntity(q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("entity", id)
	}
	return e, err
}

func getEntityByCanonical(ctx context.Context, q querier, canonical string) (*models.Entity, error) {
	e, err := scanEntity(q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE canonical_name = ?`, canonical))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("entity", canonical)
	}
	return e, err
}

func entityExists(ctx context.Context, q querier, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetEntity retrieves an entity by id
func (s *Store) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return getEntity(ctx, s.db.conn, id)
}

// GetEntityByName retrieves an entity by any spelling that folds to its canonical name
func (s *Store) GetEntityByName(ctx context.Context, name string) (*models.Entity, error) {
	return getEntityByCanonical(ctx, s.db.conn, normalize.Canonical(name))
}

// ListEntities returns every entity ordered by canonical name
func (s *Store) ListEntities(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY canonical_name`)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// SearchPrefix finds entities whose canonical name starts with the folded prefix
func (s *Store) SearchPrefix(ctx context.Context, prefix string, limit int) ([]models.Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := escapeLike(normalize.Canonical(prefix)) + "%"
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE canonical_name LIKE ? ESCAPE '\'
		ORDER BY canonical_name
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// ListByType returns entities of the given type
func (s *Store) ListByType(ctx context.Context, entityType models.EntityType, limit int) ([]models.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE entity_type = ?
		ORDER BY canonical_name
		LIMIT ?
	`, string(entityType), limit)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// ListFlagged returns stub entities awaiting review
func (s *Store) ListFlagged(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE needs_review = 1 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// EditEntity applies an explicit user edit inside its own batch
func (s *Store) EditEntity(ctx context.Context, id string, edit EntityEdit) (*models.Entity, error) {
	batch, err := s.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = batch.Rollback() }()

	e, err := getEntity(ctx, batch.tx, id)
	if err != nil {
		return nil, err
	}
	if edit.Name != nil {
		display := normalize.DisplayName(*edit.Name)
		canonical := normalize.Canonical(display)
		if canonical == "" {
			return nil, models.NewValidationError("name", "cannot be empty")
		}
		if canonical != e.CanonicalName {
			other, err := getEntityByCanonical(ctx, batch.tx, canonical)
			switch {
			case err == nil:
				return nil, models.NewValidationError("name", fmt.Sprintf("collides with entity %s (%q)", other.ID, other.Name))
			case !errors.Is(err, models.ErrNotFound):
				return nil, persistErr("check entity name", err)
			}
		}
		e.Name = display
		e.CanonicalName = canonical
	}
	if edit.Type != nil {
		if !edit.Type.Valid() {
			return nil, models.NewValidationError("type", "unknown entity type "+string(*edit.Type))
		}
		e.Type = *edit.Type
	}
	if edit.Description != nil {
		e.Description = strings.TrimSpace(*edit.Description)
	}
	if edit.NeedsReview != nil {
		e.NeedsReview = *edit.NeedsReview
	}
	if err := batch.UpdateEntity(ctx, e); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	return e, nil
}

// Neighbors walks relations in both directions up to depth hops from id
func (s *Store) Neighbors(ctx context.Context, id string, depth int) (*models.Neighborhood, error) {
	root, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if depth < 0 {
		return nil, models.NewValidationError("depth", "must be >= 0")
	}

	hood := &models.Neighborhood{
		Root:  *root,
		Depth: map[string]int{root.ID: 0},
	}
	seenRel := make(map[string]bool)
	frontier := []string{root.ID}

	for level := 1; level <= depth && len(frontier) > 0; level++ {
		var next []string
		for _, current := range frontier {
			rels, err := s.RelationsOf(ctx, current)
			if err != nil {
				return nil, err
			}
			for _, r := range rels {
				if !seenRel[r.ID] {
					seenRel[r.ID] = true
					hood.Relations = append(hood.Relations, r)
				}
				other := r.ToEntityID
				if other == current {
					other = r.FromEntityID
				}
				if _, seen := hood.Depth[other]; seen {
					continue
				}
				hood.Depth[other] = level
				next = append(next, other)
			}
		}
		frontier = next
	}

	for entityID, d := range hood.Depth {
		if d == 0 {
			continue
		}
		e, err := s.GetEntity(ctx, entityID)
		if err != nil {
			return nil, err
		}
		hood.Entities = append(hood.Entities, *e)
	}
	sortEntities(hood.Entities, hood.Depth)
	return hood, nil
}

// EntitySnapshot reads every entity inside the batch so name resolution sees
// a consistent view for the whole batch
func (b *Batch) EntitySnapshot(ctx context.Context) ([]models.Entity, error) {
	rows, err := b.tx.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities`)
	if err != nil {
		return nil, persistErr("snapshot entities", err)
	}
	entities, err := scanEntities(rows)
	return entities, persistErr("snapshot entities", err)
}

// GetEntity reads an entity inside the batch
func (b *Batch) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	e, err := getEntity(ctx, b.tx, id)
	return e, persistErr("get entity", err)
}

// EntityExists reports whether id references a stored entity
func (b *Batch) EntityExists(ctx context.Context, id string) (bool, error) {
	ok, err := entityExists(ctx, b.tx, id)
	return ok, persistErr("check entity", err)
}

// CreateEntity inserts a new entity, deriving its canonical name
func (b *Batch) CreateEntity(ctx context.Context, e *models.Entity) error {
	e.Name = normalize.DisplayName(e.Name)
	e.CanonicalName = normalize.Canonical(e.Name)
	if e.CanonicalName == "" {
		return models.NewValidationError("name", "cannot be empty")
	}
	if !e.Type.Valid() {
		return models.NewValidationError("type", "unknown entity type "+string(e.Type))
	}
	if e.ID == "" {
		e.ID = "ent_" + uuid.New().String()
	}
	now := b.now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO entities (id, name, canonical_name, entity_type, description, needs_review, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.CanonicalName, string(e.Type), e.Description, boolInt(e.NeedsReview),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	return persistErr("insert entity "+e.CanonicalName, err)
}

// UpdateEntity writes back name, type, description and review flag
func (b *Batch) UpdateEntity(ctx context.Context, e *models.Entity) error {
	e.UpdatedAt = b.now()
	res, err := b.tx.ExecContext(ctx, `
		UPDATE entities
		SET name = ?, canonical_name = ?, entity_type = ?, description = ?, needs_review = ?, updated_at = ?
		WHERE id = ?
	`, e.Name, e.CanonicalName, string(e.Type), e.Description, boolInt(e.NeedsReview), formatTime(e.UpdatedAt), e.ID)
	if err != nil {
		return persistErr("update entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFound("entity", e.ID)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func sortEntities(entities []models.Entity, depth map[string]int) {
	sort.Slice(entities, func(i, j int) bool {
		di, dj := depth[entities[i].ID], depth[entities[j].ID]
		if di != dj {
			return di < dj
		}
		return entities[i].CanonicalName < entities[j].CanonicalName
	})
}
