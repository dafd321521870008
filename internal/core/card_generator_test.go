// ABOUTME: Tests for card generation, context assembly and synthesizers
// ABOUTME: Verifies uniqueness, forced regeneration, per-combination failures and fallback

package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthFunc adapts a function into a CardSynthesizer
type synthFunc func(ctx context.Context, p models.CardPrompt) (models.CardContent, error)

func (f synthFunc) SynthesizeCard(ctx context.Context, p models.CardPrompt) (models.CardContent, error) {
	return f(ctx, p)
}

func seedRelation(t *testing.T, store *sqlite.Store, from, to string, relType models.RelationType, evidence string) {
	t.Helper()
	ctx := context.Background()
	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	defer func() { _ = batch.Rollback() }()
	require.NoError(t, batch.CreateRelation(ctx, &models.Relation{
		FromEntityID: from, ToEntityID: to, Type: relType, Strength: 1, Evidence: evidence,
	}))
	require.NoError(t, batch.Commit())
}

func seedObservation(t *testing.T, store *sqlite.Store, entityID, content string) {
	t.Helper()
	ctx := context.Background()
	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	defer func() { _ = batch.Rollback() }()
	require.NoError(t, batch.AddObservation(ctx, &models.Observation{EntityID: entityID, Content: content, Confidence: 1}))
	require.NoError(t, batch.Commit())
}

func TestCardContextBuilder_Build(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	virtue := seedEntity(t, store, "Virtude", "Excelência de caráter")
	happiness := seedEntity(t, store, "Eudaimonia", "")
	aristotle := seedEntity(t, store, "Aristóteles", "")
	seedRelation(t, store, virtue.ID, happiness.ID, models.RelCauses, "Ética a Nicômaco")
	seedRelation(t, store, aristotle.ID, virtue.ID, models.RelSupports, "")
	seedObservation(t, store, virtue.ID, "O meio-termo entre dois vícios")

	prompt, err := NewCardContextBuilder(store, 0).Build(ctx, virtue)
	require.NoError(t, err)

	assert.Equal(t, "Virtude", prompt.EntityName)
	assert.Equal(t, []string{"O meio-termo entre dois vícios"}, prompt.Observations)
	require.Len(t, prompt.Related, 2)
	outgoing := make(map[string]bool)
	for _, r := range prompt.Related {
		outgoing[r.Name] = r.Outgoing
	}
	assert.Equal(t, map[string]bool{"Eudaimonia": true, "Aristóteles": false}, outgoing)

	assert.Contains(t, prompt.Context, "DESCRIÇÃO:\nExcelência de caráter")
	assert.Contains(t, prompt.Context, "Virtude causes Eudaimonia (Ética a Nicômaco)")
	assert.Contains(t, prompt.Context, "Aristóteles supports Virtude")
	assert.Contains(t, prompt.Context, "OBSERVAÇÕES:")
}

func TestCardContextBuilder_BudgetKeepsDescriptionFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Metafísica", "Estudo do ser enquanto ser")
	for i := 0; i < 20; i++ {
		seedObservation(t, store, e.ID, strings.Repeat("observação longa ", 5))
	}

	// 20 tokens is 80 chars: room for the description and no observations
	prompt, err := NewCardContextBuilder(store, 20).Build(ctx, e)
	require.NoError(t, err)
	assert.Len(t, prompt.Observations, 20)
	assert.Contains(t, prompt.Context, "Estudo do ser enquanto ser")
	assert.NotContains(t, prompt.Context, "OBSERVAÇÕES")
	assert.LessOrEqual(t, len(prompt.Context), 80)
}

func TestTemplateSynthesizer(t *testing.T) {
	ctx := context.Background()
	p := models.CardPrompt{
		EntityName:   "Virtude",
		Description:  "Excelência de caráter",
		Observations: []string{"Adquirida pelo hábito"},
		Related: []models.RelatedEntity{
			{Name: "Eudaimonia", RelationType: models.RelCauses, Outgoing: true},
			{Name: "Vício", RelationType: models.RelContradicts, Outgoing: false},
		},
	}

	tests := []struct {
		cardType models.CardType
		subtype  models.SocraticSubtype
		question string
		answer   string
	}{
		{models.CardDefinition, "", "O que é Virtude?", "Excelência de caráter"},
		{models.CardRelation, "", "Como Virtude se relaciona com Eudaimonia?", "Virtude causes Eudaimonia"},
		{models.CardApplication, "", "Dê um exemplo de aplicação de Virtude.", "Adquirida pelo hábito"},
		{models.CardSocratic, models.SocraticObjections, "Que objeções podem ser feitas a Virtude?", "Vício contradicts Virtude"},
		{models.CardSocratic, models.SocraticEvidence, "Que evidências sustentam Virtude?", "Adquirida pelo hábito"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cardType)+"/"+string(tt.subtype), func(t *testing.T) {
			p.CardType = tt.cardType
			p.SocraticSubtype = tt.subtype
			got, err := TemplateSynthesizer{}.SynthesizeCard(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, tt.question, got.Question)
			assert.Equal(t, tt.answer, got.Answer)
		})
	}

	empty, err := TemplateSynthesizer{}.SynthesizeCard(ctx, models.CardPrompt{EntityName: "X", CardType: models.CardRelation})
	require.NoError(t, err)
	assert.Empty(t, empty.Answer)
}

func TestFallbackSynthesizer(t *testing.T) {
	ctx := context.Background()
	p := models.CardPrompt{EntityName: "Logos", Description: "Razão", CardType: models.CardDefinition}

	primary := synthFunc(func(context.Context, models.CardPrompt) (models.CardContent, error) {
		return models.CardContent{Question: "Q do modelo", Answer: "A do modelo"}, nil
	})
	got, err := NewFallbackSynthesizer(primary, nil).SynthesizeCard(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Q do modelo", got.Question)

	broken := synthFunc(func(context.Context, models.CardPrompt) (models.CardContent, error) {
		return models.CardContent{}, errors.New("connection refused")
	})
	got, err = NewFallbackSynthesizer(broken, nil).SynthesizeCard(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "O que é Logos?", got.Question)
	assert.Equal(t, "Razão", got.Answer)

	got, err = NewFallbackSynthesizer(nil, nil).SynthesizeCard(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Razão", got.Answer)
}

func TestCardGenerator_CreatesAndSkipsExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	virtue := seedEntity(t, store, "Virtude", "Excelência de caráter")
	happiness := seedEntity(t, store, "Eudaimonia", "Florescimento humano")
	seedRelation(t, store, virtue.ID, happiness.ID, models.RelCauses, "")

	gen := NewCardGenerator(store, nil, nil)
	req := GenerateRequest{
		EntityIDs: []string{virtue.ID},
		CardTypes: []models.CardType{models.CardDefinition, models.CardRelation},
	}

	summary, err := gen.Generate(ctx, req)
	require.NoError(t, err)
	require.Len(t, summary.Created, 2)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 2, summary.Created[0].Difficulty)
	assert.Equal(t, 3, summary.Created[1].Difficulty)
	for _, c := range summary.Created {
		assert.Equal(t, models.StateNew, c.State)
		assert.Equal(t, models.Day(fixedNow), c.NextReview)
		assert.Equal(t, models.DefaultEaseFactor, c.EaseFactor)
	}

	again, err := gen.Generate(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 2, again.Skipped)

	req.Force = true
	forced, err := gen.Generate(ctx, req)
	require.NoError(t, err)
	assert.Len(t, forced.Created, 2)

	cards, err := store.ListCards(ctx, virtue.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 4)
}

func TestCardGenerator_EmptySynthesisFailsOnlyThatCombination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	described := seedEntity(t, store, "Ataraxia", "Tranquilidade da alma")
	bare := seedEntity(t, store, "Apatheia", "")

	summary, err := NewCardGenerator(store, nil, nil).Generate(ctx, GenerateRequest{
		EntityIDs: []string{described.ID, bare.ID},
		CardTypes: []models.CardType{models.CardDefinition},
	})
	require.NoError(t, err)
	require.Len(t, summary.Created, 1)
	assert.Equal(t, described.ID, summary.Created[0].EntityID)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, bare.ID, summary.Failures[0].EntityID)
	assert.ErrorIs(t, summary.Failures[0].Err, models.ErrCardGeneration)
}

func TestCardGenerator_SocraticSubtypes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Justiça", "Dar a cada um o que é seu")

	var prompts []models.CardPrompt
	synth := synthFunc(func(_ context.Context, p models.CardPrompt) (models.CardContent, error) {
		prompts = append(prompts, p)
		return models.CardContent{Question: "Por quê?", Answer: "Porque sim."}, nil
	})
	gen := NewCardGenerator(store, synth, nil)

	_, err := gen.Generate(ctx, GenerateRequest{
		EntityIDs: []string{e.ID},
		CardTypes: []models.CardType{models.CardSocratic},
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	summary, err := gen.Generate(ctx, GenerateRequest{
		EntityIDs:        []string{e.ID},
		CardTypes:        []models.CardType{models.CardSocratic},
		SocraticSubtypes: []models.SocraticSubtype{models.SocraticWhyImportant, models.SocraticImplications},
	})
	require.NoError(t, err)
	require.Len(t, summary.Created, 2)
	assert.Equal(t, models.SocraticWhyImportant, summary.Created[0].SocraticSubtype)
	assert.Equal(t, 4, summary.Created[0].Difficulty)
	require.Len(t, prompts, 2)
	assert.Equal(t, models.SocraticImplications, prompts[1].SocraticSubtype)
	assert.Contains(t, prompts[0].Context, "Dar a cada um o que é seu")

	exists, err := store.HasCard(ctx, e.ID, models.CardSocratic, models.SocraticImplications)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.HasCard(ctx, e.ID, models.CardSocratic, models.SocraticEvidence)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCardGenerator_RejectsBadRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Telos", "Finalidade")
	gen := NewCardGenerator(store, nil, nil)

	_, err := gen.Generate(ctx, GenerateRequest{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = gen.Generate(ctx, GenerateRequest{EntityIDs: []string{e.ID}, CardTypes: []models.CardType{"flashcard"}})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = gen.Generate(ctx, GenerateRequest{EntityIDs: []string{e.ID, "ent_missing"}})
	assert.ErrorIs(t, err, models.ErrNotFound)

	cards, err := store.ListCards(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, cards, "a rejected request writes nothing")
}
