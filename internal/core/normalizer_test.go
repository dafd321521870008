// ABOUTME: Tests for the ingestion Normalizer
// ABOUTME: Covers dedup, idempotence, stubs, warnings, batch atomicity and cancellation

package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harper/muleta/internal/extract"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.OpenStoreInMemory()
	require.NoError(t, err)
	store.SetClock(func() time.Time { return fixedNow })
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixedClock() time.Time { return fixedNow }

// staticExtractor always returns the same result
func staticExtractor(res extract.Result) extract.Extractor {
	return extract.Func(func(context.Context, string) extract.Result { return res })
}

func entities(names ...string) []models.CandidateEntity {
	out := make([]models.CandidateEntity, 0, len(names))
	for _, n := range names {
		out = append(out, models.CandidateEntity{Name: n, Type: "conceito"})
	}
	return out
}

// failingBatch fails CreateEntity after a number of successful calls
type failingBatch struct {
	GraphBatch
	failAfter int
	calls     int
}

func (f *failingBatch) CreateEntity(ctx context.Context, e *models.Entity) error {
	f.calls++
	if f.calls > f.failAfter {
		return errors.Join(models.ErrPersistence, errors.New("disk full"))
	}
	return f.GraphBatch.CreateEntity(ctx, e)
}

// cancellingBatch cancels the ingest context after the first entity
type cancellingBatch struct {
	GraphBatch
	cancel context.CancelFunc
}

func (c *cancellingBatch) CreateEntity(ctx context.Context, e *models.Entity) error {
	err := c.GraphBatch.CreateEntity(ctx, e)
	c.cancel()
	return err
}

func TestNormalizer_DedupCaseAndDiacritics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)

	summary, err := n.Apply(ctx, models.Candidates{
		Entities: entities("Sócrates", "socrates", " SOCRATES "),
	}, SourceInfo{Type: "text", Path: "manual"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EntitiesCreated)
	assert.Equal(t, 2, summary.EntitiesMerged)

	all, err := store.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Sócrates", all[0].Name)
	assert.Equal(t, "socrates", all[0].CanonicalName)
	assert.Equal(t, models.EntityConcept, all[0].Type)

	observations, err := store.Observations(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Len(t, observations, 2, "each merge attaches an observation")
}

func TestNormalizer_FuzzyMergeUsesThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	strict := NewNormalizer(store, nil, NormalizerConfig{MergeThreshold: 0.99}, nil)
	_, err := strict.Apply(ctx, models.Candidates{Entities: entities("Epistemologia")}, SourceInfo{})
	require.NoError(t, err)

	summary, err := strict.Apply(ctx, models.Candidates{Entities: entities("Epistemologias")}, SourceInfo{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EntitiesCreated)

	loose := NewNormalizer(store, nil, NormalizerConfig{MergeThreshold: 0.9}, nil)
	summary, err = loose.Apply(ctx, models.Candidates{Entities: entities("Epistemologiaa")}, SourceInfo{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.EntitiesCreated)
	assert.Equal(t, 1, summary.EntitiesMerged)
}

func TestNormalizer_IngestIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, extract.NewHeuristicExtractor(), NormalizerConfig{}, nil)

	req := IngestRequest{
		Text:       `A "Razão Prática" aparece em Immanuel Kant e na Crítica da Razão Pura.`,
		SourceType: "text",
		SourcePath: "kant.txt",
	}
	first, err := n.Ingest(ctx, req)
	require.NoError(t, err)
	require.Positive(t, first.EntitiesCreated)
	require.Positive(t, first.RelationsCreated)

	entitiesBefore, err := store.ListEntities(ctx)
	require.NoError(t, err)
	relationsBefore, err := store.ListRelations(ctx)
	require.NoError(t, err)

	second, err := n.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, second.EntitiesCreated)
	assert.Zero(t, second.RelationsCreated)
	assert.Equal(t, first.EntitiesCreated, second.EntitiesMerged)
	assert.Equal(t, first.RelationsCreated, second.RelationsSkipped)
	assert.Empty(t, second.Flagged)

	entitiesAfter, err := store.ListEntities(ctx)
	require.NoError(t, err)
	relationsAfter, err := store.ListRelations(ctx)
	require.NoError(t, err)
	assert.Len(t, entitiesAfter, len(entitiesBefore))
	assert.Len(t, relationsAfter, len(relationsBefore))
}

func TestNormalizer_StubForUnknownEndpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)

	summary, err := n.Apply(ctx, models.Candidates{
		Entities: []models.CandidateEntity{{Name: "Platão", Type: "pessoa", Description: "Filósofo grego"}},
		Relations: []models.CandidateRelation{
			{FromName: "Platão", ToName: "Academia", Type: "parte_de", Evidence: "fundou a Academia"},
		},
	}, SourceInfo{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EntitiesCreated)
	assert.Equal(t, 1, summary.RelationsCreated)
	require.Len(t, summary.Flagged, 1)
	assert.Equal(t, "Academia", summary.Flagged[0].Name)

	stub, err := store.GetEntity(ctx, summary.Flagged[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntityUnknown, stub.Type)
	assert.True(t, stub.NeedsReview)

	flagged, err := store.ListFlagged(ctx)
	require.NoError(t, err)
	assert.Len(t, flagged, 1)

	// a later batch with concrete details clears the flag
	summary, err = n.Apply(ctx, models.Candidates{
		Entities: []models.CandidateEntity{{Name: "academia", Type: "organizacao", Description: "Escola de Platão"}},
	}, SourceInfo{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EntitiesMerged)

	adopted, err := store.GetEntity(ctx, stub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntityOrganization, adopted.Type)
	assert.Equal(t, "Escola de Platão", adopted.Description)
	assert.False(t, adopted.NeedsReview)
}

func TestNormalizer_MalformedCandidatesAreWarnings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)

	summary, err := n.Apply(ctx, models.Candidates{
		Entities: []models.CandidateEntity{
			{Name: "", Type: "conceito"},
			{Name: "Ética", Type: ""},
			{Name: "Moral", Type: "conceito"},
		},
		Relations: []models.CandidateRelation{
			{FromName: "", ToName: "Moral"},
			{FromName: "Moral", ToName: "moral"},
		},
	}, SourceInfo{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EntitiesCreated)
	assert.Len(t, summary.Warnings, 4)
	assert.Equal(t, 2, summary.RelationsSkipped)
	assert.Zero(t, summary.RelationsCreated)
}

func TestNormalizer_MarkOnlyNamesAreSkipped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)

	summary, err := n.Apply(ctx, models.Candidates{
		Entities: []models.CandidateEntity{
			{Name: "\u0301", Type: "conceito"},
			{Name: "Kant", Type: "pessoa"},
		},
		Relations: []models.CandidateRelation{
			{FromName: "Kant", ToName: " \u0301\u0300 "},
		},
	}, SourceInfo{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EntitiesCreated)
	assert.Empty(t, summary.Flagged)
	assert.Equal(t, 1, summary.RelationsSkipped)
	assert.Len(t, summary.Warnings, 2)

	all, err := store.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kant", all[0].CanonicalName)
}

func TestNormalizer_RelationReinforcement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)
	cands := func(evidence string) models.Candidates {
		return models.Candidates{
			Entities: entities("Virtude", "Felicidade"),
			Relations: []models.CandidateRelation{
				{FromName: "Virtude", ToName: "Felicidade", Type: "conduz_a", Evidence: evidence},
			},
		}
	}

	_, err := n.Apply(ctx, cands("Ética a Nicômaco"), SourceInfo{})
	require.NoError(t, err)
	summary, err := n.Apply(ctx, cands("Livro I"), SourceInfo{})
	require.NoError(t, err)
	assert.Zero(t, summary.RelationsCreated)
	assert.Equal(t, 1, summary.RelationsSkipped)

	relations, err := store.ListRelations(ctx)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, models.RelCauses, relations[0].Type)
	assert.Equal(t, "Livro I", relations[0].Evidence)
}

func TestNormalizer_DescriptionBackfill(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)

	_, err := n.Apply(ctx, models.Candidates{Entities: entities("Dialética")}, SourceInfo{})
	require.NoError(t, err)
	_, err = n.Apply(ctx, models.Candidates{Entities: []models.CandidateEntity{
		{Name: "dialetica", Type: "metodo", Description: "Método de perguntas e respostas"},
	}}, SourceInfo{})
	require.NoError(t, err)

	e, err := store.GetEntityByName(ctx, "Dialética")
	require.NoError(t, err)
	assert.Equal(t, "Método de perguntas e respostas", e.Description)
	assert.Equal(t, models.EntityConcept, e.Type, "merging never retypes a concrete entity")
}

func TestNormalizer_BatchAtomicity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var fb *failingBatch
	begin := func(ctx context.Context) (GraphBatch, error) {
		b, err := store.BeginBatch(ctx)
		if err != nil {
			return nil, err
		}
		fb = &failingBatch{GraphBatch: b, failAfter: 3}
		return fb, nil
	}
	n := newNormalizer(begin, nil, NormalizerConfig{}, nil)

	summary, err := n.Apply(ctx, models.Candidates{
		Entities: entities("Alfa", "Beta", "Gama", "Delta", "Épsilon"),
	}, SourceInfo{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPersistence))
	assert.Equal(t, 4, fb.calls)
	assert.Zero(t, summary.EntitiesCreated)

	all, err := store.ListEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// the write turn was released
	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.Rollback())
}

func TestNormalizer_CancellationRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	begin := func(ctx context.Context) (GraphBatch, error) {
		b, err := store.BeginBatch(ctx)
		if err != nil {
			return nil, err
		}
		return &cancellingBatch{GraphBatch: b, cancel: cancel}, nil
	}
	n := newNormalizer(begin, nil, NormalizerConfig{}, nil)

	_, err := n.Apply(ctx, models.Candidates{Entities: entities("Alfa", "Beta", "Gama")}, SourceInfo{})
	require.ErrorIs(t, err, context.Canceled)

	all, err := store.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNormalizer_ContentBounds(t *testing.T) {
	store := newTestStore(t)
	n := NewNormalizer(store, extract.NewHeuristicExtractor(), NormalizerConfig{MaxContentLength: 40}, nil)

	_, err := n.Ingest(context.Background(), IngestRequest{Text: "  curto  "})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = n.Ingest(context.Background(), IngestRequest{Text: "Um texto que passa do limite configurado para ingestão"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestNormalizer_ExtractionOutcomes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	text := "Texto suficientemente longo sobre Hannah Arendt."

	degraded := extract.Success(extract.HeuristicSource, models.Candidates{Entities: entities("Hannah Arendt")})
	degraded.Degraded = true
	n := NewNormalizer(store, staticExtractor(degraded), NormalizerConfig{}, nil)
	summary, err := n.Ingest(ctx, IngestRequest{Text: text})
	require.NoError(t, err)
	assert.True(t, summary.Degraded)
	assert.Equal(t, extract.HeuristicSource, summary.Extractor)
	assert.Equal(t, 1, summary.EntitiesCreated)

	down := NewNormalizer(store, staticExtractor(extract.Unavailable("openai", errors.New("timeout"))), NormalizerConfig{}, nil)
	_, err = down.Ingest(ctx, IngestRequest{Text: text})
	assert.ErrorIs(t, err, models.ErrExtraction)
}
