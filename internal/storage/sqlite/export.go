// ABOUTME: Export of cards, argument graphs and full knowledge snapshots
// ABOUTME: Supports JSON, YAML, tab-separated and Markdown output
package sqlite

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/muleta/internal/models"
	"gopkg.in/yaml.v3"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTSV  = "tsv"
)

// ExportData is a full snapshot of the knowledge graph and learning loop
type ExportData struct {
	Version    string                 `yaml:"version" json:"version"`
	ExportedAt string                 `yaml:"exported_at" json:"exported_at"`
	Tool       string                 `yaml:"tool" json:"tool"`
	Entities   []ExportEntity         `yaml:"entities" json:"entities"`
	Relations  []ExportRelation       `yaml:"relations" json:"relations"`
	Cards      []models.CardRecord    `yaml:"cards" json:"cards"`
	Arguments  []models.ArgumentGraph `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// ExportEntity is an entity with its observations for export
type ExportEntity struct {
	Name         string   `yaml:"name" json:"name"`
	Type         string   `yaml:"type" json:"type"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	NeedsReview  bool     `yaml:"needs_review,omitempty" json:"needs_review,omitempty"`
	Observations []string `yaml:"observations,omitempty" json:"observations,omitempty"`
}

// ExportRelation is a relation addressed by entity names for export
type ExportRelation struct {
	From     string  `yaml:"from" json:"from"`
	To       string  `yaml:"to" json:"to"`
	Type     string  `yaml:"type" json:"type"`
	Strength float64 `yaml:"strength" json:"strength"`
	Evidence string  `yaml:"evidence,omitempty" json:"evidence,omitempty"`
}

// CardRecords returns every card as a flat {question, answer, card_type, entity_name} record
func (s *Store) CardRecords(ctx context.Context) ([]models.CardRecord, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT c.question, c.answer, c.card_type, e.name
		FROM spaced_repetition_cards c
		JOIN entities e ON e.id = c.entity_id
		ORDER BY e.canonical_name, c.created_at, c.id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := []models.CardRecord{}
	for rows.Next() {
		var (
			r        models.CardRecord
			cardType string
		)
		if err := rows.Scan(&r.Question, &r.Answer, &cardType, &r.EntityName); err != nil {
			return nil, err
		}
		r.CardType = models.CardType(cardType)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Export builds a full snapshot of the store
func (s *Store) Export(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		Version:    "1.0",
		ExportedAt: s.now().UTC().Format(time.RFC3339),
		Tool:       "muleta",
		Entities:   []ExportEntity{},
		Relations:  []ExportRelation{},
	}

	entities, err := s.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	names := make(map[string]string, len(entities))
	for _, e := range entities {
		names[e.ID] = e.Name
		observations, err := s.Observations(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list observations: %w", err)
		}
		export := ExportEntity{
			Name:        e.Name,
			Type:        string(e.Type),
			Description: e.Description,
			NeedsReview: e.NeedsReview,
		}
		for _, o := range observations {
			export.Observations = append(export.Observations, o.Content)
		}
		data.Entities = append(data.Entities, export)
	}

	relations, err := s.ListRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	for _, r := range relations {
		data.Relations = append(data.Relations, ExportRelation{
			From:     names[r.FromEntityID],
			To:       names[r.ToEntityID],
			Type:     string(r.Type),
			Strength: r.Strength,
			Evidence: r.Evidence,
		})
	}

	if data.Cards, err = s.CardRecords(ctx); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	sequences, err := s.ListSequences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list arguments: %w", err)
	}
	for _, seq := range sequences {
		graph, err := s.ArgumentGraph(ctx, seq.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load argument %s: %w", seq.ID, err)
		}
		data.Arguments = append(data.Arguments, *graph)
	}

	return data, nil
}

// ExportToYAML writes a full snapshot to a YAML file
func (s *Store) ExportToYAML(ctx context.Context, outputPath string) error {
	data, err := s.Export(ctx)
	if err != nil {
		return err
	}
	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

// ExportToMarkdown writes a readable study summary to a Markdown file
func (s *Store) ExportToMarkdown(ctx context.Context, outputPath string) error {
	data, err := s.Export(ctx)
	if err != nil {
		return err
	}
	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintf(file, "# Knowledge Export - %s\n\n", s.now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(file, "Generated: %s\n\n", data.ExportedAt)

	if len(data.Entities) > 0 {
		_, _ = fmt.Fprintln(file, "## Entities")
		_, _ = fmt.Fprintln(file)
		for _, e := range data.Entities {
			_, _ = fmt.Fprintf(file, "### %s (%s)\n\n", e.Name, e.Type)
			if e.Description != "" {
				_, _ = fmt.Fprintf(file, "%s\n\n", e.Description)
			}
			for _, o := range e.Observations {
				_, _ = fmt.Fprintf(file, "- %s\n", o)
			}
			if len(e.Observations) > 0 {
				_, _ = fmt.Fprintln(file)
			}
		}
	}

	if len(data.Relations) > 0 {
		_, _ = fmt.Fprintln(file, "## Relations")
		_, _ = fmt.Fprintln(file)
		_, _ = fmt.Fprintln(file, "| From | Type | To | Strength |")
		_, _ = fmt.Fprintln(file, "|------|------|----|----------|")
		for _, r := range data.Relations {
			_, _ = fmt.Fprintf(file, "| %s | %s | %s | %.2f |\n", r.From, r.Type, r.To, r.Strength)
		}
		_, _ = fmt.Fprintln(file)
	}

	if len(data.Cards) > 0 {
		_, _ = fmt.Fprintln(file, "## Cards")
		_, _ = fmt.Fprintln(file)
		for _, c := range data.Cards {
			_, _ = fmt.Fprintf(file, "**Q (%s, %s):** %s\n\n**A:** %s\n\n", c.EntityName, c.CardType, c.Question, c.Answer)
		}
	}
	return nil
}

// WriteCardRecords encodes card records as json, yaml or tsv
func WriteCardRecords(w io.Writer, records []models.CardRecord, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	case FormatYAML:
		return encodeYAML(w, records)
	case FormatTSV:
		writer := csv.NewWriter(w)
		writer.Comma = '\t'
		for _, r := range records {
			row := []string{flatten(r.Question), flatten(r.Answer), string(r.CardType), r.EntityName}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	default:
		return models.NewValidationError("format", "unsupported card export format "+format)
	}
}

// WriteArgumentGraph encodes an argument graph as json or yaml
func WriteArgumentGraph(w io.Writer, graph *models.ArgumentGraph, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(graph)
	case FormatYAML:
		return encodeYAML(w, graph)
	default:
		return models.NewValidationError("format", "unsupported argument export format "+format)
	}
}

func encodeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// flatten keeps multi-line answers on one TSV row
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func createOutput(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}
