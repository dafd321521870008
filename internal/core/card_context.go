// ABOUTME: CardContextBuilder assembles the context a card is synthesized from
// ABOUTME: Gathers description, observations and neighbors, then enforces a size limit
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/muleta/internal/models"
)

// DefaultContextTokens bounds the rendered card context
const DefaultContextTokens = 1000

// GraphReader is the read side of the Knowledge Store used to build context
type GraphReader interface {
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	Observations(ctx context.Context, entityID string) ([]models.Observation, error)
	RelationsOf(ctx context.Context, entityID string) ([]models.Relation, error)
}

// CardContextBuilder turns an entity and its neighborhood into a CardPrompt
type CardContextBuilder struct {
	graph     GraphReader
	maxTokens int
}

// NewCardContextBuilder creates a builder; maxTokens <= 0 uses DefaultContextTokens
func NewCardContextBuilder(graph GraphReader, maxTokens int) *CardContextBuilder {
	if maxTokens <= 0 {
		maxTokens = DefaultContextTokens
	}
	return &CardContextBuilder{graph: graph, maxTokens: maxTokens}
}

// Build gathers the entity's description, observations and related entities
func (cb *CardContextBuilder) Build(ctx context.Context, entity *models.Entity) (models.CardPrompt, error) {
	prompt := models.CardPrompt{
		EntityName:  entity.Name,
		EntityType:  entity.Type,
		Description: entity.Description,
	}

	observations, err := cb.graph.Observations(ctx, entity.ID)
	if err != nil {
		return prompt, fmt.Errorf("failed to load observations: %w", err)
	}
	for _, o := range observations {
		if o.Content != entity.Description {
			prompt.Observations = append(prompt.Observations, o.Content)
		}
	}

	relations, err := cb.graph.RelationsOf(ctx, entity.ID)
	if err != nil {
		return prompt, fmt.Errorf("failed to load relations: %w", err)
	}
	for _, r := range relations {
		otherID, outgoing := r.ToEntityID, true
		if otherID == entity.ID {
			otherID, outgoing = r.FromEntityID, false
		}
		other, err := cb.graph.GetEntity(ctx, otherID)
		if err != nil {
			return prompt, fmt.Errorf("failed to load related entity: %w", err)
		}
		prompt.Related = append(prompt.Related, models.RelatedEntity{
			Name:         other.Name,
			RelationType: r.Type,
			Evidence:     r.Evidence,
			Outgoing:     outgoing,
		})
	}

	prompt.Context = cb.render(prompt)
	return prompt, nil
}

// render lays out the sections and enforces the size limit.
// Priority: description > relations > observations.
func (cb *CardContextBuilder) render(p models.CardPrompt) string {
	// Token approximation: 4 chars ≈ 1 token
	maxChars := cb.maxTokens * 4

	description := "DESCRIÇÃO:\n" + p.Description + "\n"
	if p.Description == "" {
		description = "DESCRIÇÃO:\n(sem descrição)\n"
	}
	if len(description) >= maxChars {
		return truncateChars(description, maxChars)
	}

	available := maxChars - len(description)
	sections := []string{description}
	for _, section := range []string{formatRelated(p), formatObservations(p.Observations)} {
		if section == "" {
			continue
		}
		if len(section) > available {
			section = truncateLines(section, available)
		}
		if section == "" {
			break
		}
		sections = append(sections, section)
		available -= len(section)
	}
	return strings.Join(sections, "\n")
}

// RelationLine renders one neighbor as "A tipo B"
func RelationLine(entityName string, r models.RelatedEntity) string {
	if r.Outgoing {
		return fmt.Sprintf("%s %s %s", entityName, r.RelationType, r.Name)
	}
	return fmt.Sprintf("%s %s %s", r.Name, r.RelationType, entityName)
}

func formatRelated(p models.CardPrompt) string {
	if len(p.Related) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("RELAÇÕES:\n")
	for _, r := range p.Related {
		sb.WriteString("- " + RelationLine(p.EntityName, r))
		if r.Evidence != "" {
			sb.WriteString(" (" + r.Evidence + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatObservations(observations []string) string {
	if len(observations) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("OBSERVAÇÕES:\n")
	for _, o := range observations {
		sb.WriteString("- " + o + "\n")
	}
	return sb.String()
}

// truncateLines keeps whole lines while they fit; a header alone is dropped
func truncateLines(section string, maxChars int) string {
	lines := strings.SplitAfter(section, "\n")
	var sb strings.Builder
	for _, line := range lines {
		if sb.Len()+len(line) > maxChars {
			break
		}
		sb.WriteString(line)
	}
	if strings.Count(sb.String(), "\n") <= 1 {
		return ""
	}
	return sb.String()
}

func truncateChars(s string, maxChars int) string {
	const marker = "... [truncado]"
	if maxChars <= len(marker) {
		return ""
	}
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	size := 0
	for _, r := range runes {
		size += len(string(r))
		if size > maxChars-len(marker) {
			break
		}
		out = append(out, r)
	}
	return string(out) + marker
}
