// ABOUTME: Card synthesizers turn an assembled CardPrompt into a question and answer
// ABOUTME: TemplateSynthesizer is the local fallback when the LLM cannot be used
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
)

// CardSynthesizer produces the text of one card
type CardSynthesizer interface {
	SynthesizeCard(ctx context.Context, prompt models.CardPrompt) (models.CardContent, error)
}

// TemplateSynthesizer fills fixed Portuguese templates from the prompt.
// It leaves the answer empty when the graph holds nothing to answer with.
type TemplateSynthesizer struct{}

var socraticQuestions = map[models.SocraticSubtype]string{
	models.SocraticWhyImportant: "Por que %s é importante?",
	models.SocraticEvidence:     "Que evidências sustentam %s?",
	models.SocraticImplications: "Quais são as implicações de %s?",
	models.SocraticObjections:   "Que objeções podem ser feitas a %s?",
	models.SocraticRelations:    "Como %s se conecta a outras ideias?",
}

// SynthesizeCard implements CardSynthesizer
func (TemplateSynthesizer) SynthesizeCard(ctx context.Context, p models.CardPrompt) (models.CardContent, error) {
	if err := ctx.Err(); err != nil {
		return models.CardContent{}, err
	}
	switch p.CardType {
	case models.CardDefinition:
		return models.CardContent{
			Question: fmt.Sprintf("O que é %s?", p.EntityName),
			Answer:   p.Description,
		}, nil
	case models.CardRelation:
		if len(p.Related) == 0 {
			return models.CardContent{}, nil
		}
		r := p.Related[0]
		answer := RelationLine(p.EntityName, r)
		if r.Evidence != "" {
			answer += ". " + r.Evidence
		}
		return models.CardContent{
			Question: fmt.Sprintf("Como %s se relaciona com %s?", p.EntityName, r.Name),
			Answer:   answer,
		}, nil
	case models.CardApplication:
		return models.CardContent{
			Question: fmt.Sprintf("Dê um exemplo de aplicação de %s.", p.EntityName),
			Answer:   firstNonEmpty(p.Observations...),
		}, nil
	case models.CardSocratic:
		tmpl, ok := socraticQuestions[p.SocraticSubtype]
		if !ok {
			return models.CardContent{}, models.NewValidationError("socratic_subtype", "unknown subtype "+string(p.SocraticSubtype))
		}
		return models.CardContent{
			Question: fmt.Sprintf(tmpl, p.EntityName),
			Answer:   socraticAnswer(p),
		}, nil
	default:
		return models.CardContent{}, models.NewValidationError("card_type", "unknown card type "+string(p.CardType))
	}
}

func socraticAnswer(p models.CardPrompt) string {
	switch p.SocraticSubtype {
	case models.SocraticEvidence:
		return strings.Join(p.Observations, "\n")
	case models.SocraticRelations:
		lines := make([]string, 0, len(p.Related))
		for _, r := range p.Related {
			lines = append(lines, RelationLine(p.EntityName, r))
		}
		return strings.Join(lines, "\n")
	case models.SocraticObjections:
		var lines []string
		for _, r := range p.Related {
			if r.RelationType == models.RelContradicts {
				lines = append(lines, RelationLine(p.EntityName, r))
			}
		}
		return strings.Join(lines, "\n")
	default:
		return firstNonEmpty(p.Description, strings.Join(p.Observations, "\n"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// FallbackSynthesizer tries Primary and uses Fallback when it errors
type FallbackSynthesizer struct {
	Primary  CardSynthesizer
	Fallback CardSynthesizer
	Logger   *logger.Logger
}

// NewFallbackSynthesizer wraps primary with the template fallback. A nil
// primary uses the templates only.
func NewFallbackSynthesizer(primary CardSynthesizer, log *logger.Logger) *FallbackSynthesizer {
	return &FallbackSynthesizer{
		Primary:  primary,
		Fallback: TemplateSynthesizer{},
		Logger:   logger.OrNop(log).Component("synthesizer"),
	}
}

// SynthesizeCard implements CardSynthesizer
func (f *FallbackSynthesizer) SynthesizeCard(ctx context.Context, p models.CardPrompt) (models.CardContent, error) {
	if f.Primary != nil {
		content, err := f.Primary.SynthesizeCard(ctx, p)
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return models.CardContent{}, err
		}
		f.Logger.Warn("degraded mode: using card templates",
			"entity", p.EntityName, "card_type", p.CardType, "error", err)
	}
	return f.Fallback.SynthesizeCard(ctx, p)
}
