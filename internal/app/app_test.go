// ABOUTME: Tests for component wiring
// ABOUTME: Verifies degraded wiring without a model, Open on a file path, and config errors
package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/muleta/internal/config"
	"github.com/harper/muleta/internal/core"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutModelRunsDegraded(t *testing.T) {
	store, err := sqlite.OpenStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)
	a, err := New(config.Defaults(), store, nil, func() time.Time { return now }, nil)
	require.NoError(t, err)
	assert.Nil(t, a.LLM)
	assert.Equal(t, models.Day(now), a.Scheduler.Today())

	summary, err := a.Normalizer.Ingest(context.Background(), core.IngestRequest{
		Text:       `Immanuel Kant escreveu a "Crítica da Razão Pura".`,
		SourceType: "text",
	})
	require.NoError(t, err)
	assert.True(t, summary.Degraded)
	assert.Equal(t, 2, summary.EntitiesCreated)
}

func TestNewRejectsUnknownSimilarity(t *testing.T) {
	store, err := sqlite.OpenStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Defaults()
	cfg.Similarity = "cosine-of-vibes"
	_, err = New(cfg, store, nil, nil, nil)
	assert.Error(t, err)
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.DBPath = filepath.Join(t.TempDir(), "muleta.db")
	cfg.OpenAIKey = ""
	cfg.BaseURL = ""

	a, err := Open(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	job, err := a.GapJob()
	require.NoError(t, err)
	require.NotNil(t, job)

	stats, err := a.Store.Statistics(context.Background(), a.Scheduler.Today())
	require.NoError(t, err)
	assert.Zero(t, stats.Entities)
}
