// ABOUTME: Spaced-repetition card and review storage for SQLite
// ABOUTME: Due queries, uniqueness checks and append-only review history
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/muleta/internal/models"
)

const cardColumns = `id, entity_id, question, answer, card_type, socratic_subtype, difficulty, state,
	next_review, review_count, ladder_step, interval_days, success_rate, ease_factor, created_at`

func scanCard(row interface{ Scan(...any) error }) (*models.Card, error) {
	var (
		c                     models.Card
		cardType, state       string
		subtype               sql.NullString
		nextReview, createdAt string
	)
	if err := row.Scan(&c.ID, &c.EntityID, &c.Question, &c.Answer, &cardType, &subtype, &c.Difficulty, &state,
		&nextReview, &c.ReviewCount, &c.LadderStep, &c.IntervalDays, &c.SuccessRate, &c.EaseFactor, &createdAt); err != nil {
		return nil, err
	}
	c.CardType = models.CardType(cardType)
	if subtype.Valid {
		c.SocraticSubtype = models.SocraticSubtype(subtype.String)
	}
	c.State = models.CardState(state)
	c.NextReview = parseDay(nextReview)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func scanCards(rows *sql.Rows) ([]models.Card, error) {
	defer func() { _ = rows.Close() }()
	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func getCard(ctx context.Context, q querier, id string) (*models.Card, error) {
	c, err := scanCard(q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM spaced_repetition_cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("card", id)
	}
	return c, err
}

// GetCard retrieves a card by id
func (s *Store) GetCard(ctx context.Context, id string) (*models.Card, error) {
	return getCard(ctx, s.db.conn, id)
}

// DueCards returns cards due on or before today, earliest first and hardest
// first within a day
func (s *Store) DueCards(ctx context.Context, today time.Time) ([]models.Card, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM spaced_repetition_cards
		WHERE next_review <= ?
		ORDER BY next_review ASC, difficulty DESC, created_at ASC
	`, formatDay(today))
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}

// ListCards returns the cards of one entity, or every card when entityID is empty
func (s *Store) ListCards(ctx context.Context, entityID string) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM spaced_repetition_cards`
	var args []any
	if entityID != "" {
		query += ` WHERE entity_id = ?`
		args = append(args, entityID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanCards(rows)
}

// GetCard reads a card inside the batch
func (b *Batch) GetCard(ctx context.Context, id string) (*models.Card, error) {
	c, err := getCard(ctx, b.tx, id)
	return c, persistErr("get card", err)
}

// HasCard reports whether a card for the (entity, type, subtype) combination exists
func (s *Store) HasCard(ctx context.Context, entityID string, cardType models.CardType, subtype models.SocraticSubtype) (bool, error) {
	return cardExists(ctx, s.db.conn, entityID, cardType, subtype)
}

// CardExists is HasCard inside the batch
func (b *Batch) CardExists(ctx context.Context, entityID string, cardType models.CardType, subtype models.SocraticSubtype) (bool, error) {
	return cardExists(ctx, b.tx, entityID, cardType, subtype)
}

func cardExists(ctx context.Context, q querier, entityID string, cardType models.CardType, subtype models.SocraticSubtype) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM spaced_repetition_cards
		WHERE entity_id = ? AND card_type = ? AND COALESCE(socratic_subtype, '') = ?
	`, entityID, string(cardType), string(subtype)).Scan(&n)
	if err != nil {
		return false, persistErr("check card", err)
	}
	return n > 0, nil
}

// CreateCard inserts a freshly generated card
func (b *Batch) CreateCard(ctx context.Context, c *models.Card) error {
	c.Question = strings.TrimSpace(c.Question)
	c.Answer = strings.TrimSpace(c.Answer)
	if c.Question == "" || c.Answer == "" {
		return models.NewValidationError("card", "question and answer are required")
	}
	if !c.CardType.Valid() {
		return models.NewValidationError("card_type", "unknown card type "+string(c.CardType))
	}
	if c.SocraticSubtype != "" && !c.SocraticSubtype.Valid() {
		return models.NewValidationError("socratic_subtype", "unknown subtype "+string(c.SocraticSubtype))
	}
	if c.Difficulty < 1 || c.Difficulty > 5 {
		return models.NewValidationError("difficulty", "must be within [1,5]")
	}
	ok, err := entityExists(ctx, b.tx, c.EntityID)
	if err != nil {
		return persistErr("check card entity", err)
	}
	if !ok {
		return models.NewValidationError("entity_id", "references unknown entity "+c.EntityID)
	}

	if c.ID == "" {
		c.ID = "card_" + uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = b.now()
	}
	if c.State == "" {
		c.State = models.StateNew
	}
	if c.EaseFactor == 0 {
		c.EaseFactor = models.DefaultEaseFactor
	}
	if c.NextReview.Before(models.Day(c.CreatedAt)) {
		c.NextReview = models.Day(c.CreatedAt)
	}

	_, err = b.tx.ExecContext(ctx, `
		INSERT INTO spaced_repetition_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.EntityID, c.Question, c.Answer, string(c.CardType), nullString(string(c.SocraticSubtype)),
		c.Difficulty, string(c.State), formatDay(c.NextReview), c.ReviewCount, c.LadderStep,
		c.IntervalDays, c.SuccessRate, c.EaseFactor, formatTime(c.CreatedAt))
	return persistErr("insert card", err)
}

// ApplyReview writes the scheduler's new card state and appends the review
func (b *Batch) ApplyReview(ctx context.Context, c *models.Card, r *models.Review) error {
	if r.ID == "" {
		r.ID = "rev_" + uuid.New().String()
	}
	r.CardID = c.ID
	res, err := b.tx.ExecContext(ctx, `
		UPDATE spaced_repetition_cards
		SET state = ?, next_review = ?, review_count = ?, ladder_step = ?, interval_days = ?,
		    success_rate = ?, ease_factor = ?
		WHERE id = ?
	`, string(c.State), formatDay(c.NextReview), c.ReviewCount, c.LadderStep, c.IntervalDays,
		c.SuccessRate, c.EaseFactor, c.ID)
	if err != nil {
		return persistErr("update card", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFound("card", c.ID)
	}
	_, err = b.tx.ExecContext(ctx, `
		INSERT INTO card_reviews (id, card_id, reviewed_at, quality, response_time, next_interval)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.CardID, formatTime(r.ReviewedAt), r.Quality, r.ResponseTime, r.NextInterval)
	return persistErr("insert review", err)
}

const reviewColumns = `id, card_id, reviewed_at, quality, response_time, next_interval`

func scanReviews(rows *sql.Rows) ([]models.Review, error) {
	defer func() { _ = rows.Close() }()
	var reviews []models.Review
	for rows.Next() {
		var (
			r          models.Review
			reviewedAt string
		)
		if err := rows.Scan(&r.ID, &r.CardID, &reviewedAt, &r.Quality, &r.ResponseTime, &r.NextInterval); err != nil {
			return nil, err
		}
		r.ReviewedAt = parseTime(reviewedAt)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func lastReview(ctx context.Context, q querier, cardID string) (*models.Review, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM card_reviews
		WHERE card_id = ?
		ORDER BY reviewed_at DESC
		LIMIT 1
	`, cardID)
	if err != nil {
		return nil, err
	}
	reviews, err := scanReviews(rows)
	if err != nil || len(reviews) == 0 {
		return nil, err
	}
	return &reviews[0], nil
}

// ReviewsForCard returns a card's review history, oldest first
func (s *Store) ReviewsForCard(ctx context.Context, cardID string) ([]models.Review, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM card_reviews
		WHERE card_id = ?
		ORDER BY reviewed_at ASC
	`, cardID)
	if err != nil {
		return nil, err
	}
	return scanReviews(rows)
}

// LastReview returns the most recent review of a card, or nil if none
func (s *Store) LastReview(ctx context.Context, cardID string) (*models.Review, error) {
	return lastReview(ctx, s.db.conn, cardID)
}

// LastReview reads the most recent review of a card inside the batch
func (b *Batch) LastReview(ctx context.Context, cardID string) (*models.Review, error) {
	r, err := lastReview(ctx, b.tx, cardID)
	return r, persistErr("last review", err)
}

// ReviewsByEntity groups every review by the entity of its card, oldest first
func (s *Store) ReviewsByEntity(ctx context.Context) (map[string][]models.Review, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT c.entity_id, r.id, r.card_id, r.reviewed_at, r.quality, r.response_time, r.next_interval
		FROM card_reviews r
		JOIN spaced_repetition_cards c ON c.id = r.card_id
		ORDER BY r.reviewed_at ASC, r.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byEntity := make(map[string][]models.Review)
	for rows.Next() {
		var (
			entityID   string
			r          models.Review
			reviewedAt string
		)
		if err := rows.Scan(&entityID, &r.ID, &r.CardID, &reviewedAt, &r.Quality, &r.ResponseTime, &r.NextInterval); err != nil {
			return nil, err
		}
		r.ReviewedAt = parseTime(reviewedAt)
		byEntity[entityID] = append(byEntity[entityID], r)
	}
	return byEntity, rows.Err()
}
