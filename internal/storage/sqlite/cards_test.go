// ABOUTME: Tests for card, review, gap and argument storage
// ABOUTME: Covers due ordering, review history, gap upserts and exports
package sqlite

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harper/muleta/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func seedCard(t *testing.T, store *Store, entityID string, nextReview time.Time, difficulty int) *models.Card {
	t.Helper()
	ctx := context.Background()
	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	defer func() { _ = batch.Rollback() }()

	c := &models.Card{
		EntityID:   entityID,
		Question:   "O que é?",
		Answer:     "Uma resposta",
		CardType:   models.CardDefinition,
		Difficulty: difficulty,
		NextReview: nextReview,
		CreatedAt:  nextReview.AddDate(0, 0, -30),
	}
	require.NoError(t, batch.CreateCard(ctx, c))
	require.NoError(t, batch.Commit())
	return c
}

func TestDueCardsOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Sócrates", models.EntityPerson)

	today := models.Day(fixedNow)
	tomorrow := seedCard(t, store, e.ID, today.AddDate(0, 0, 1), 5)
	todayEasy := seedCard(t, store, e.ID, today, 1)
	todayHard := seedCard(t, store, e.ID, today, 4)
	yesterday := seedCard(t, store, e.ID, today.AddDate(0, 0, -1), 2)

	due, err := store.DueCards(ctx, fixedNow)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, yesterday.ID, due[0].ID)
	assert.Equal(t, todayHard.ID, due[1].ID)
	assert.Equal(t, todayEasy.ID, due[2].ID)
	for _, c := range due {
		assert.NotEqual(t, tomorrow.ID, c.ID)
	}
}

func TestCreateCardDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Ética", models.EntityConcept)

	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	c := &models.Card{EntityID: e.ID, Question: "Q", Answer: "A", CardType: models.CardSocratic,
		SocraticSubtype: models.SocraticEvidence, Difficulty: 4}
	require.NoError(t, batch.CreateCard(ctx, c))

	exists, err := batch.CardExists(ctx, e.ID, models.CardSocratic, models.SocraticEvidence)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = batch.CardExists(ctx, e.ID, models.CardSocratic, models.SocraticObjections)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, batch.Commit())

	got, err := store.GetCard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateNew, got.State)
	assert.Equal(t, models.DefaultEaseFactor, got.EaseFactor)
	assert.Equal(t, models.Day(fixedNow), got.NextReview)
	assert.Equal(t, models.SocraticEvidence, got.SocraticSubtype)
}

func TestCreateCardRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Ética", models.EntityConcept)

	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	defer func() { _ = batch.Rollback() }()

	cases := []*models.Card{
		{EntityID: e.ID, Question: "", Answer: "A", CardType: models.CardDefinition, Difficulty: 2},
		{EntityID: e.ID, Question: "Q", Answer: "A", CardType: "trivia", Difficulty: 2},
		{EntityID: e.ID, Question: "Q", Answer: "A", CardType: models.CardDefinition, Difficulty: 9},
		{EntityID: "ent_missing", Question: "Q", Answer: "A", CardType: models.CardDefinition, Difficulty: 2},
	}
	for _, c := range cases {
		assert.True(t, errors.Is(batch.CreateCard(ctx, c), models.ErrValidation))
	}
}

func TestApplyReviewAppendsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Sócrates", models.EntityPerson)
	c := seedCard(t, store, e.ID, models.Day(fixedNow), 3)

	for i, q := range []int{4, 2} {
		batch, err := store.BeginBatch(ctx)
		require.NoError(t, err)
		card, err := batch.GetCard(ctx, c.ID)
		require.NoError(t, err)
		card.ReviewCount++
		card.State = models.StateLearning
		card.NextReview = models.Day(fixedNow).AddDate(0, 0, i+1)
		review := &models.Review{ReviewedAt: fixedNow.Add(time.Duration(i) * time.Hour), Quality: q, ResponseTime: 3.5, NextInterval: i + 1}
		require.NoError(t, batch.ApplyReview(ctx, card, review))
		require.NoError(t, batch.Commit())
	}

	reviews, err := store.ReviewsForCard(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, 4, reviews[0].Quality)
	assert.True(t, reviews[0].ReviewedAt.Before(reviews[1].ReviewedAt))

	last, err := store.LastReview(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Quality)

	byEntity, err := store.ReviewsByEntity(ctx)
	require.NoError(t, err)
	assert.Len(t, byEntity[e.ID], 2)

	got, err := store.GetCard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReviewCount)

	_, err = store.DB().Conn().Exec(`UPDATE card_reviews SET quality = 5`)
	assert.Error(t, err)
}

func TestLastReviewEmpty(t *testing.T) {
	store := newTestStore(t)
	last, err := store.LastReview(context.Background(), "card_none")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestUpsertGapUpdatesInPlace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Sócrates", models.EntityPerson)

	upsert := func(conf float64) {
		batch, err := store.BeginBatch(ctx)
		require.NoError(t, err)
		require.NoError(t, batch.UpsertGap(ctx, &models.KnowledgeGap{
			EntityID: e.ID, GapType: models.GapWeakUnderstanding, Confidence: conf,
			IdentifiedFrom: "reviews", Suggestion: "revise",
		}))
		require.NoError(t, batch.Commit())
	}
	upsert(1.0)
	require.NoError(t, store.ResolveGap(ctx, e.ID, models.GapWeakUnderstanding))
	upsert(0.6)

	n, err := store.CountGaps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gap, err := store.GetGap(ctx, e.ID, models.GapWeakUnderstanding)
	require.NoError(t, err)
	assert.Equal(t, 0.6, gap.Confidence)
	assert.True(t, gap.Resolved)
	assert.Equal(t, "Sócrates", gap.EntityName)

	open, err := store.ListGaps(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, open)
	all, err := store.ListGaps(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = store.ResolveGap(ctx, e.ID, models.GapMissingRelations)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestArgumentGraphRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Sócrates", models.EntityPerson)

	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	seq := &models.ArgumentSequence{Title: "Mortalidade", EntityIDs: []string{e.ID}}
	require.NoError(t, batch.CreateSequence(ctx, seq))
	premise := &models.ArgumentNode{SequenceID: seq.ID, NodeType: models.NodePremise, Content: "Todo homem é mortal", Position: models.Position{X: 1, Y: 2}}
	conclusion := &models.ArgumentNode{SequenceID: seq.ID, NodeType: models.NodeConclusion, Content: "Sócrates é mortal", EntityID: e.ID}
	require.NoError(t, batch.CreateNode(ctx, premise))
	require.NoError(t, batch.CreateNode(ctx, conclusion))
	require.NoError(t, batch.CreateConnection(ctx, &models.ArgumentConnection{SequenceID: seq.ID, FromNodeID: premise.ID, ToNodeID: conclusion.ID, ConnectionType: models.ConnLeadsTo, Strength: 1}))
	require.NoError(t, batch.CreateConnection(ctx, &models.ArgumentConnection{SequenceID: seq.ID, FromNodeID: conclusion.ID, ToNodeID: premise.ID, ConnectionType: models.ConnContradicts, Strength: 0.3}))
	require.NoError(t, batch.Commit())

	graph, err := store.ArgumentGraph(ctx, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, graph.Sequence.EntityIDs)
	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, models.Position{X: 1, Y: 2}, graph.Nodes[0].Position)
	assert.Equal(t, e.ID, graph.Nodes[1].EntityID)
	assert.Len(t, graph.Connections, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteArgumentGraph(&buf, graph, FormatYAML))
	var decoded models.ArgumentGraph
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Connections, 2)
}

func TestCardRecordsExport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Sócrates", models.EntityPerson)
	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.CreateCard(ctx, &models.Card{EntityID: e.ID, Question: "Quem foi\nSócrates?", Answer: "Filósofo\tgrego", CardType: models.CardDefinition, Difficulty: 2}))
	require.NoError(t, batch.Commit())

	records, err := store.CardRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Sócrates", records[0].EntityName)

	var buf bytes.Buffer
	require.NoError(t, WriteCardRecords(&buf, records, FormatTSV))
	assert.Equal(t, "Quem foi Sócrates?\tFilósofo grego\tdefinition\tSócrates\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCardRecords(&buf, records, FormatJSON))
	assert.True(t, strings.Contains(buf.String(), `"entity_name": "Sócrates"`))

	err = WriteCardRecords(&buf, records, "apkg")
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestStatisticsAndVisualization(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := seedEntity(t, store, "Sócrates", models.EntityPerson)
	b := seedEntity(t, store, "Maiêutica", models.EntityMethod)
	seedCard(t, store, a.ID, models.Day(fixedNow), 3)

	batch, err := store.BeginBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.AddObservation(ctx, &models.Observation{EntityID: a.ID, Content: "Filósofo", Confidence: 1}))
	require.NoError(t, batch.CreateRelation(ctx, &models.Relation{FromEntityID: a.ID, ToEntityID: b.ID, Type: models.RelRelatedTo, Strength: 0.7}))
	require.NoError(t, batch.Commit())

	stats, err := store.Statistics(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Relations)
	assert.Equal(t, 1, stats.Observations)
	assert.Equal(t, 1, stats.DueToday)
	assert.Equal(t, 1, stats.EntityTypes["person"])
	assert.Equal(t, 1, stats.CardStates["NEW"])
	assert.Equal(t, SchemaVersion, stats.SchemaVersion)

	graph, err := store.Visualization(ctx)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Links, 1)
	assert.Equal(t, 0.7, graph.Links[0].Value)
	assert.Len(t, graph.Categories, 2)
	for _, n := range graph.Nodes {
		if n.ID == a.ID {
			assert.Equal(t, 1, n.Value)
			assert.Equal(t, 1, n.Relations)
		}
	}

	evidence, err := store.EntityEvidenceCounts(ctx)
	require.NoError(t, err)
	assert.Len(t, evidence, 2)
}

func TestExportSnapshotFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntity(t, store, "Sócrates", models.EntityPerson)

	dir := t.TempDir()
	require.NoError(t, store.ExportToYAML(ctx, dir+"/out/export.yaml"))
	require.NoError(t, store.ExportToMarkdown(ctx, dir+"/out/export.md"))

	data, err := store.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "muleta", data.Tool)
	require.Len(t, data.Entities, 1)
	assert.Equal(t, "person", data.Entities[0].Type)
}
