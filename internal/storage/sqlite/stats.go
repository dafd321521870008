// ABOUTME: Aggregate statistics and the visualization graph
// ABOUTME: Read-only views used by the stats command and MCP tools
package sqlite

import (
	"context"
	"sort"
	"time"
)

// Statistics summarizes the knowledge graph and learning loop
type Statistics struct {
	Entities      int            `json:"entities"`
	Relations     int            `json:"relations"`
	Observations  int            `json:"observations"`
	Cards         int            `json:"cards"`
	DueToday      int            `json:"due_today"`
	Reviews       int            `json:"reviews"`
	OpenGaps      int            `json:"open_gaps"`
	Flagged       int            `json:"flagged"`
	Arguments     int            `json:"arguments"`
	EntityTypes   map[string]int `json:"entity_types"`
	RelationTypes map[string]int `json:"relation_types"`
	CardTypes     map[string]int `json:"card_types"`
	CardStates    map[string]int `json:"card_states"`
	SchemaVersion int            `json:"schema_version"`
}

// Statistics computes totals and per-type breakdowns as of today
func (s *Store) Statistics(ctx context.Context, today time.Time) (*Statistics, error) {
	stats := &Statistics{}
	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.Entities, `SELECT COUNT(*) FROM entities`, nil},
		{&stats.Relations, `SELECT COUNT(*) FROM relations`, nil},
		{&stats.Observations, `SELECT COUNT(*) FROM observations`, nil},
		{&stats.Cards, `SELECT COUNT(*) FROM spaced_repetition_cards`, nil},
		{&stats.DueToday, `SELECT COUNT(*) FROM spaced_repetition_cards WHERE next_review <= ?`, []any{formatDay(today)}},
		{&stats.Reviews, `SELECT COUNT(*) FROM card_reviews`, nil},
		{&stats.OpenGaps, `SELECT COUNT(*) FROM knowledge_gaps WHERE resolved = 0`, nil},
		{&stats.Flagged, `SELECT COUNT(*) FROM entities WHERE needs_review = 1`, nil},
		{&stats.Arguments, `SELECT COUNT(*) FROM argument_sequences`, nil},
		{&stats.SchemaVersion, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`, nil},
	}
	for _, c := range counts {
		if err := s.db.conn.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var err error
	if stats.EntityTypes, err = s.groupCount(ctx, `SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type`); err != nil {
		return nil, err
	}
	if stats.RelationTypes, err = s.groupCount(ctx, `SELECT relation_type, COUNT(*) FROM relations GROUP BY relation_type`); err != nil {
		return nil, err
	}
	if stats.CardTypes, err = s.groupCount(ctx, `SELECT card_type, COUNT(*) FROM spaced_repetition_cards GROUP BY card_type`); err != nil {
		return nil, err
	}
	if stats.CardStates, err = s.groupCount(ctx, `SELECT state, COUNT(*) FROM spaced_repetition_cards GROUP BY state`); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) groupCount(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// GraphNode is one entity in the visualization graph
type GraphNode struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Value     int    `json:"value"`
	Relations int    `json:"relations"`
}

// GraphLink is one relation in the visualization graph
type GraphLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
}

// GraphCategory counts nodes per entity type
type GraphCategory struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// VisualizationGraph is the node/link shape consumed by graph renderers
type VisualizationGraph struct {
	Nodes      []GraphNode     `json:"nodes"`
	Links      []GraphLink     `json:"links"`
	Categories []GraphCategory `json:"categories"`
}

// Visualization returns the whole graph sized by observation count
func (s *Store) Visualization(ctx context.Context) (*VisualizationGraph, error) {
	entities, err := s.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	observations, err := observationCounts(ctx, s.db.conn)
	if err != nil {
		return nil, err
	}
	relationsPer, err := relationCounts(ctx, s.db.conn)
	if err != nil {
		return nil, err
	}
	relations, err := s.ListRelations(ctx)
	if err != nil {
		return nil, err
	}

	graph := &VisualizationGraph{
		Nodes:      make([]GraphNode, 0, len(entities)),
		Links:      make([]GraphLink, 0, len(relations)),
		Categories: []GraphCategory{},
	}
	categories := make(map[string]int)
	for _, e := range entities {
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:        e.ID,
			Name:      e.Name,
			Category:  string(e.Type),
			Value:     observations[e.ID],
			Relations: relationsPer[e.ID],
		})
		categories[string(e.Type)]++
	}
	for _, r := range relations {
		graph.Links = append(graph.Links, GraphLink{
			Source: r.FromEntityID,
			Target: r.ToEntityID,
			Name:   string(r.Type),
			Value:  r.Strength,
		})
	}
	for name, count := range categories {
		graph.Categories = append(graph.Categories, GraphCategory{Name: name, Count: count})
	}
	sort.Slice(graph.Categories, func(i, j int) bool {
		return graph.Categories[i].Name < graph.Categories[j].Name
	})
	return graph, nil
}
