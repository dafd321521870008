// ABOUTME: Knowledge Store facade over the SQLite tables
// ABOUTME: Serializes writers through a single write turn; reads run concurrently
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harper/muleta/internal/models"
)

const (
	// fixed width so TEXT ordering matches time ordering
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dayLayout  = "2006-01-02"
)

// Store is the knowledge graph and learning-loop store. It is injected into
// every component; there is no package-level connection.
type Store struct {
	db   *DB
	turn chan struct{}
	now  func() time.Time
}

// NewStore wraps an open DB
func NewStore(db *DB) *Store {
	return &Store{
		db:   db,
		turn: make(chan struct{}, 1),
		now:  time.Now,
	}
}

// OpenStore opens the database at path and wraps it in a Store
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewStore(db), nil
}

// OpenStoreInMemory creates an isolated in-memory store (for testing)
func OpenStoreInMemory() (*Store, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return NewStore(db), nil
}

// SetClock overrides the time source used for created_at/updated_at stamps
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database wrapper
func (s *Store) DB() *DB {
	return s.db
}

// BeginBatch acquires the write turn and opens a transaction. The turn is
// held until Commit or Rollback; waiting for it honours ctx cancellation.
func (s *Store) BeginBatch(ctx context.Context) (*Batch, error) {
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		<-s.turn
		return nil, fmt.Errorf("%w: begin transaction: %v", models.ErrPersistence, err)
	}
	return &Batch{tx: tx, store: s}, nil
}

// Batch is one all-or-nothing unit of writes holding the store's write turn
type Batch struct {
	tx    *sql.Tx
	store *Store
	done  bool
}

// Commit makes the batch durable and releases the write turn
func (b *Batch) Commit() error {
	if b.done {
		return errors.New("batch already finished")
	}
	b.done = true
	defer b.release()
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", models.ErrPersistence, err)
	}
	return nil
}

// Rollback discards every write in the batch and releases the write turn.
// Calling it after Commit is a no-op, so it is safe to defer.
func (b *Batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	defer b.release()
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: rollback: %v", models.ErrPersistence, err)
	}
	return nil
}

func (b *Batch) release() {
	<-b.store.turn
}

func (b *Batch) now() time.Time {
	return b.store.now().UTC()
}

// persistErr tags a storage failure so callers can classify it
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", models.ErrPersistence, op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatDay(t time.Time) string {
	return models.Day(t).Format(dayLayout)
}

func parseDay(s string) time.Time {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
