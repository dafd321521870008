// ABOUTME: SQLite schema for the knowledge graph and learning loop
// ABOUTME: Ordered migrations build the tables, indexes, and append-only guards
package sqlite

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Schema contains all SQL statements for database initialization
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    canonical_name TEXT NOT NULL UNIQUE,
    entity_type    TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    needs_review   INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
    id          TEXT PRIMARY KEY,
    entity_id   TEXT NOT NULL REFERENCES entities(id),
    content     TEXT NOT NULL,
    source_type TEXT NOT NULL DEFAULT 'text',
    source_path TEXT NOT NULL DEFAULT 'unknown',
    confidence  REAL NOT NULL DEFAULT 1.0 CHECK(confidence BETWEEN 0 AND 1),
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS relations (
    id             TEXT PRIMARY KEY,
    from_entity_id TEXT NOT NULL REFERENCES entities(id),
    to_entity_id   TEXT NOT NULL REFERENCES entities(id),
    relation_type  TEXT NOT NULL,
    strength       REAL NOT NULL DEFAULT 1.0 CHECK(strength BETWEEN 0 AND 1),
    evidence       TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL,
    CHECK(from_entity_id <> to_entity_id)
);

CREATE TABLE IF NOT EXISTS spaced_repetition_cards (
    id               TEXT PRIMARY KEY,
    entity_id        TEXT NOT NULL REFERENCES entities(id),
    question         TEXT NOT NULL,
    answer           TEXT NOT NULL,
    card_type        TEXT NOT NULL DEFAULT 'definition',
    socratic_subtype TEXT,
    difficulty       INTEGER NOT NULL DEFAULT 3 CHECK(difficulty BETWEEN 1 AND 5),
    state            TEXT NOT NULL DEFAULT 'NEW',
    next_review      TEXT NOT NULL,
    review_count     INTEGER NOT NULL DEFAULT 0 CHECK(review_count >= 0),
    ladder_step      INTEGER NOT NULL DEFAULT 0,
    interval_days    INTEGER NOT NULL DEFAULT 0,
    success_rate     REAL NOT NULL DEFAULT 0.0 CHECK(success_rate BETWEEN 0 AND 1),
    ease_factor      REAL NOT NULL DEFAULT 2.5 CHECK(ease_factor >= 1.3),
    created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS card_reviews (
    id            TEXT PRIMARY KEY,
    card_id       TEXT NOT NULL REFERENCES spaced_repetition_cards(id),
    reviewed_at   TEXT NOT NULL,
    quality       INTEGER NOT NULL CHECK(quality BETWEEN 1 AND 5),
    response_time REAL NOT NULL CHECK(response_time >= 0),
    next_interval INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS argument_sequences (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    entity_ids  TEXT NOT NULL DEFAULT '[]',
    description TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS argument_nodes (
    id          TEXT PRIMARY KEY,
    sequence_id TEXT NOT NULL REFERENCES argument_sequences(id),
    node_type   TEXT NOT NULL,
    content     TEXT NOT NULL,
    entity_id   TEXT REFERENCES entities(id),
    position_x  REAL NOT NULL DEFAULT 0,
    position_y  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS argument_connections (
    id              TEXT PRIMARY KEY,
    sequence_id     TEXT NOT NULL REFERENCES argument_sequences(id),
    from_node_id    TEXT NOT NULL REFERENCES argument_nodes(id),
    to_node_id      TEXT NOT NULL REFERENCES argument_nodes(id),
    connection_type TEXT NOT NULL,
    strength        REAL NOT NULL DEFAULT 1.0,
    CHECK(from_node_id <> to_node_id)
);

CREATE TABLE IF NOT EXISTS knowledge_gaps (
    id              TEXT PRIMARY KEY,
    entity_id       TEXT NOT NULL REFERENCES entities(id),
    gap_type        TEXT NOT NULL,
    confidence      REAL NOT NULL,
    identified_from TEXT NOT NULL DEFAULT '',
    suggestion      TEXT NOT NULL DEFAULT '',
    resolved        INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    UNIQUE(entity_id, gap_type)
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(canonical_name);
CREATE INDEX IF NOT EXISTS idx_observations_entity ON observations(entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_entity_id);
CREATE INDEX IF NOT EXISTS idx_cards_entity ON spaced_repetition_cards(entity_id, card_type, socratic_subtype);
CREATE INDEX IF NOT EXISTS idx_cards_next_review ON spaced_repetition_cards(next_review);
CREATE INDEX IF NOT EXISTS idx_reviews_card ON card_reviews(card_id, reviewed_at);
CREATE INDEX IF NOT EXISTS idx_argument_nodes_sequence ON argument_nodes(sequence_id);
CREATE INDEX IF NOT EXISTS idx_argument_connections_sequence ON argument_connections(sequence_id);
CREATE INDEX IF NOT EXISTS idx_gaps_entity ON knowledge_gaps(entity_id);
`

// Triggers keep observations and reviews append-only
const Triggers = `
CREATE TRIGGER IF NOT EXISTS observations_append_only BEFORE UPDATE ON observations BEGIN
    SELECT RAISE(ABORT, 'observations are append-only');
END;
CREATE TRIGGER IF NOT EXISTS card_reviews_append_only BEFORE UPDATE ON card_reviews BEGIN
    SELECT RAISE(ABORT, 'card reviews are append-only');
END;
`

// reviewIndexes backs the review-log export and the open-gap listing
const reviewIndexes = `
CREATE INDEX IF NOT EXISTS idx_reviews_time ON card_reviews(reviewed_at);
CREATE INDEX IF NOT EXISTS idx_gaps_open ON knowledge_gaps(resolved, gap_type);
`

// migrationsTable records every applied migration with the checksum of its SQL
const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    applied_at TEXT NOT NULL
);
`

// Migration is one ordered schema step. Applied steps must never be edited;
// add a new one instead.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// Checksum is the hex sha256 of the step's statements
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(strings.Join(m.Statements, "\n")))
	return hex.EncodeToString(sum[:])
}

// Migrations lists every schema step in version order
var Migrations = []Migration{
	{Version: 1, Name: "base_schema", Statements: []string{Schema, Triggers}},
	{Version: 2, Name: "review_and_gap_indexes", Statements: []string{reviewIndexes}},
}

// SchemaVersion is the version a fully migrated database reports
const SchemaVersion = 2
