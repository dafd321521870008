package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harper/muleta/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{"entities":[{"name":"Sócrates","type":"pessoa","description":"Filósofo"}],"relations":[{"from":"Sócrates","to":"Platão","type":"relacionado_a","evidence":"mestre"}]}`

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", validJSON},
		{"json fence", "Aqui está:\n```json\n" + validJSON + "\n```\nFim."},
		{"generic fence", "```\n" + validJSON + "\n```"},
		{"surrounding prose", "Claro! " + validJSON + " Espero ter ajudado."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseResponse("llm", tt.raw)
			require.Equal(t, StatusSuccess, res.Status, "err: %v", res.Err)
			require.Len(t, res.Candidates.Entities, 1)
			assert.Equal(t, "Sócrates", res.Candidates.Entities[0].Name)
			require.Len(t, res.Candidates.Relations, 1)
			assert.Equal(t, "Platão", res.Candidates.Relations[0].ToName)
			assert.Equal(t, "llm", res.Source)
		})
	}
}

func TestParseResponseFailures(t *testing.T) {
	for _, raw := range []string{
		"não consegui",
		`{"entities": []}`,
		`{"foo": 1, "bar": 2}`,
		`{"entities": [}`,
	} {
		res := ParseResponse("llm", raw)
		assert.Equal(t, StatusParseFailure, res.Status, raw)
		assert.Equal(t, raw, res.Raw)
		assert.True(t, errors.Is(res.Error(), models.ErrExtraction))
	}
}

func TestParseResponseEmpty(t *testing.T) {
	res := ParseResponse("llm", "   ")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Empty(t, res.Candidates.Entities)
	assert.NoError(t, res.Error())
}

func TestHeuristicExtractor(t *testing.T) {
	text := `O "mito da caverna" foi descrito por Platão na República. A Escola de Frankfurt discutiu isso.`
	res := NewHeuristicExtractor().Extract(context.Background(), text)
	require.Equal(t, StatusSuccess, res.Status)

	var names []string
	for _, e := range res.Candidates.Entities {
		names = append(names, e.Name)
		assert.Equal(t, "concept", e.Type)
	}
	assert.Equal(t, []string{"mito da caverna", "Platão", "República", "Escola de Frankfurt"}, names)

	require.Len(t, res.Candidates.Relations, 3)
	for i, r := range res.Candidates.Relations {
		assert.Equal(t, names[i], r.FromName)
		assert.Equal(t, names[i+1], r.ToName)
		assert.Equal(t, "related_to", r.Type)
		assert.Equal(t, ProximityEvidence, r.Evidence)
	}
}

func TestHeuristicExtractorDeduplicates(t *testing.T) {
	res := NewHeuristicExtractor().Extract(context.Background(), `"Ética" e Ética e ÉTICA são o mesmo.`)
	require.Len(t, res.Candidates.Entities, 1)
	assert.Empty(t, res.Candidates.Relations)
}

// scripted returns the queued results in order
type scripted struct {
	results []Result
	calls   int
}

func (s *scripted) Extract(ctx context.Context, text string) Result {
	r := s.results[s.calls]
	s.calls++
	return r
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestResilient(primary Extractor, fallback bool, retries int) *ResilientExtractor {
	r := NewResilientExtractor(primary, fallback, RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond}, nil)
	r.sleep = noSleep
	return r
}

func TestResilientRetriesUnavailable(t *testing.T) {
	primary := &scripted{results: []Result{
		Unavailable("llm", errors.New("timeout")),
		Success("llm", models.Candidates{Entities: []models.CandidateEntity{{Name: "Kant", Type: "pessoa"}}}),
	}}
	res := newTestResilient(primary, true, 2).Extract(context.Background(), "texto")

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, primary.calls)
}

func TestResilientFallsBackAfterExhaustion(t *testing.T) {
	down := Unavailable("llm", errors.New("connection refused"))
	primary := &scripted{results: []Result{down, down, down}}
	res := newTestResilient(primary, true, 2).Extract(context.Background(), `falou de "Maiêutica".`)

	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Degraded)
	assert.Equal(t, HeuristicSource, res.Source)
	require.Len(t, res.Candidates.Entities, 1)
}

func TestResilientFallsBackOnParseFailureWithoutRetry(t *testing.T) {
	primary := &scripted{results: []Result{ParseFailure("llm", "lixo", errors.New("bad json"))}}
	res := newTestResilient(primary, true, 3).Extract(context.Background(), "Texto sobre Kant.")

	assert.Equal(t, 1, primary.calls)
	assert.True(t, res.Degraded)
}

func TestResilientWithoutFallbackReturnsFailure(t *testing.T) {
	down := Unavailable("llm", errors.New("down"))
	primary := &scripted{results: []Result{down, down}}
	res := newTestResilient(primary, false, 1).Extract(context.Background(), "texto")

	assert.Equal(t, StatusUnavailable, res.Status)
	assert.True(t, errors.Is(res.Error(), models.ErrExtraction))
}

func TestResilientWithoutPrimaryUsesFallback(t *testing.T) {
	res := newTestResilient(nil, true, 2).Extract(context.Background(), "Sobre Hegel.")
	assert.True(t, res.Degraded)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestResilientStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := Func(func(ctx context.Context, text string) Result {
		cancel()
		return Unavailable("llm", ctx.Err())
	})
	res := newTestResilient(primary, true, 3).Extract(ctx, "texto")
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.False(t, res.Degraded)
}
