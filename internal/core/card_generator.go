// ABOUTME: CardGenerator derives spaced-repetition cards from entities
// ABOUTME: Context is built and synthesized outside the write turn, cards are written in one batch
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
)

// cardDifficulty is the starting difficulty per card type
var cardDifficulty = map[models.CardType]int{
	models.CardDefinition:  2,
	models.CardRelation:    3,
	models.CardSocratic:    4,
	models.CardApplication: 4,
}

// GenerateRequest selects the (entity, type, subtype) combinations to build.
// An empty CardTypes means every non-socratic type.
type GenerateRequest struct {
	EntityIDs        []string
	CardTypes        []models.CardType
	SocraticSubtypes []models.SocraticSubtype
	Force            bool
}

// GenerationFailure is one combination that produced no card
type GenerationFailure struct {
	EntityID        string                 `json:"entity_id"`
	CardType        models.CardType        `json:"card_type"`
	SocraticSubtype models.SocraticSubtype `json:"socratic_subtype,omitempty"`
	Reason          string                 `json:"reason"`
	Err             error                  `json:"-"`
}

// GenerateSummary reports created cards, skipped duplicates and failures
type GenerateSummary struct {
	Created  []models.Card       `json:"created"`
	Skipped  int                 `json:"skipped"`
	Failures []GenerationFailure `json:"failures"`
}

type combination struct {
	entity  *models.Entity
	kind    models.CardType
	subtype models.SocraticSubtype
}

// CardGenerator builds cards for entities
type CardGenerator struct {
	store   *sqlite.Store
	builder *CardContextBuilder
	synth   CardSynthesizer
	log     *logger.Logger
}

// NewCardGenerator wires the generator; a nil synth uses the templates
func NewCardGenerator(store *sqlite.Store, synth CardSynthesizer, log *logger.Logger) *CardGenerator {
	if synth == nil {
		synth = TemplateSynthesizer{}
	}
	return &CardGenerator{
		store:   store,
		builder: NewCardContextBuilder(store, DefaultContextTokens),
		synth:   synth,
		log:     logger.OrNop(log).Component("card_generator"),
	}
}

func (g *CardGenerator) combinations(ctx context.Context, req GenerateRequest) ([]combination, error) {
	if len(req.EntityIDs) == 0 {
		return nil, models.NewValidationError("entity_ids", "at least one entity is required")
	}
	types := req.CardTypes
	if len(types) == 0 {
		types = []models.CardType{models.CardDefinition, models.CardRelation, models.CardApplication}
	}
	for _, t := range types {
		if !t.Valid() {
			return nil, models.NewValidationError("card_types", "unknown card type "+string(t))
		}
		if t == models.CardSocratic && len(req.SocraticSubtypes) == 0 {
			return nil, models.NewValidationError("socratic_subtypes", "required for socratic cards")
		}
	}
	for _, s := range req.SocraticSubtypes {
		if !s.Valid() {
			return nil, models.NewValidationError("socratic_subtypes", "unknown subtype "+string(s))
		}
	}

	var combos []combination
	seen := make(map[string]bool)
	for _, id := range req.EntityIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		e, err := g.store.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, t := range types {
			if t != models.CardSocratic {
				combos = append(combos, combination{entity: e, kind: t})
				continue
			}
			for _, s := range req.SocraticSubtypes {
				combos = append(combos, combination{entity: e, kind: t, subtype: s})
			}
		}
	}
	return combos, nil
}

// Generate synthesizes and stores every requested combination not already
// present. Empty synthesis fails only that combination.
func (g *CardGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateSummary, error) {
	combos, err := g.combinations(ctx, req)
	if err != nil {
		return nil, err
	}

	summary := &GenerateSummary{}
	prompts := make(map[string]models.CardPrompt)
	var pending []models.Card

	for _, c := range combos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !req.Force {
			exists, err := g.store.HasCard(ctx, c.entity.ID, c.kind, c.subtype)
			if err != nil {
				return nil, err
			}
			if exists {
				summary.Skipped++
				continue
			}
		}

		base, ok := prompts[c.entity.ID]
		if !ok {
			base, err = g.builder.Build(ctx, c.entity)
			if err != nil {
				return nil, err
			}
			prompts[c.entity.ID] = base
		}
		prompt := base
		prompt.CardType = c.kind
		prompt.SocraticSubtype = c.subtype

		content, err := g.synth.SynthesizeCard(ctx, prompt)
		if err == nil && (strings.TrimSpace(content.Question) == "" || strings.TrimSpace(content.Answer) == "") {
			err = errors.New("empty question or answer")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			summary.Failures = append(summary.Failures, g.failure(c, err))
			continue
		}

		pending = append(pending, models.Card{
			EntityID:        c.entity.ID,
			Question:        content.Question,
			Answer:          content.Answer,
			CardType:        c.kind,
			SocraticSubtype: c.subtype,
			Difficulty:      cardDifficulty[c.kind],
		})
	}

	if len(pending) > 0 {
		if err := g.persist(ctx, req.Force, pending, summary); err != nil {
			return nil, err
		}
	}

	g.log.Info("cards generated",
		"created", len(summary.Created),
		"skipped", summary.Skipped,
		"failed", len(summary.Failures))
	return summary, nil
}

func (g *CardGenerator) failure(c combination, err error) GenerationFailure {
	wrapped := fmt.Errorf("%w: %s %s: %v", models.ErrCardGeneration, c.entity.Name, c.kind, err)
	g.log.Warn("card combination failed",
		"entity_id", c.entity.ID, "card_type", c.kind, "subtype", c.subtype, "error", err)
	return GenerationFailure{
		EntityID:        c.entity.ID,
		CardType:        c.kind,
		SocraticSubtype: c.subtype,
		Reason:          wrapped.Error(),
		Err:             wrapped,
	}
}

func (g *CardGenerator) persist(ctx context.Context, force bool, pending []models.Card, summary *GenerateSummary) error {
	batch, err := g.store.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Rollback() }()

	var created []models.Card
	skipped := 0
	for i := range pending {
		card := pending[i]
		if !force {
			exists, err := batch.CardExists(ctx, card.EntityID, card.CardType, card.SocraticSubtype)
			if err != nil {
				return err
			}
			if exists {
				skipped++
				continue
			}
		}
		if err := batch.CreateCard(ctx, &card); err != nil {
			return err
		}
		created = append(created, card)
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	summary.Created = append(summary.Created, created...)
	summary.Skipped += skipped
	return nil
}
