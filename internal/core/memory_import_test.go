// ABOUTME: Tests for the memory.jsonl reader
// ABOUTME: Covers record mapping, observation shapes, blank lines and malformed input
package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harper/muleta/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memoryFixture = `{"entity": {"name": "Kant", "entity_type": "pessoa", "description": "Filósofo de Königsberg"}, "observations": ["Escreveu três Críticas", {"content": "Influenciou o idealismo", "confidence": 0.8}], "relations": [{"to_entity_name": "Crítica da Razão Pura", "relation_type": "relacionado_a", "evidence": "autor"}]}

{"entity": {"name": "Crítica da Razão Pura", "type": "obra"}}
`

func TestParseMemoryJSONL(t *testing.T) {
	cands, err := ParseMemoryJSONL(strings.NewReader(memoryFixture))
	require.NoError(t, err)

	require.Len(t, cands.Entities, 2)
	assert.Equal(t, "Kant", cands.Entities[0].Name)
	assert.Equal(t, "pessoa", cands.Entities[0].Type)
	assert.Equal(t, "obra", cands.Entities[1].Type)

	require.Len(t, cands.Observations, 2)
	assert.Equal(t, "Kant", cands.Observations[0].EntityName)
	assert.Equal(t, "Escreveu três Críticas", cands.Observations[0].Content)
	assert.Equal(t, 0.8, cands.Observations[1].Confidence)

	require.Len(t, cands.Relations, 1)
	assert.Equal(t, models.CandidateRelation{
		FromName: "Kant",
		ToName:   "Crítica da Razão Pura",
		Type:     "relacionado_a",
		Evidence: "autor",
	}, cands.Relations[0])
}

func TestParseMemoryJSONLReportsBadLine(t *testing.T) {
	input := `{"entity": {"name": "Kant"}}
{"entity": {"name": "Hegel"`

	_, err := ParseMemoryJSONL(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseMemoryJSONL(strings.NewReader(`{"entity": {"name": "Kant"}, "observations": [42]}`))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestMemoryImportAppliesAsOneBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)

	cands, err := ParseMemoryJSONL(strings.NewReader(memoryFixture))
	require.NoError(t, err)
	summary, err := n.Apply(ctx, cands, SourceInfo{Type: "import", Path: "memory.jsonl"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.EntitiesCreated)
	assert.Equal(t, 2, summary.Observations)
	assert.Equal(t, 1, summary.RelationsCreated)
	assert.Empty(t, summary.Flagged)

	kant, err := store.GetEntityByName(ctx, "kant")
	require.NoError(t, err)
	obs, err := store.Observations(ctx, kant.ID)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	for _, o := range obs {
		assert.Equal(t, "import", o.SourceType)
		assert.Equal(t, "memory.jsonl", o.SourcePath)
	}
}

func TestNormalizer_ObservationsNeedKnownEntity(t *testing.T) {
	store := newTestStore(t)
	n := NewNormalizer(store, nil, NormalizerConfig{}, nil)

	summary, err := n.Apply(context.Background(), models.Candidates{
		Entities: entities("Ética"),
		Observations: []models.CandidateObservation{
			{EntityName: "etica", Content: "Ramo da filosofia", Confidence: 7},
			{EntityName: "Estética", Content: "Sem entidade"},
			{EntityName: "Ética", Content: "  "},
		},
	}, SourceInfo{Type: "import"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Observations)
	assert.Len(t, summary.Warnings, 2)
	all, err := store.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
