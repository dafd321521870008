// ABOUTME: ChunkedExtractor runs an Extractor over paragraph chunks of long text
// ABOUTME: Chunks are extracted concurrently with a bound and merged in input order
package core

import (
	"context"
	"sync"

	"github.com/harper/muleta/internal/extract"
	"github.com/harper/muleta/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultExtractConcurrency bounds in-flight chunk extractions
const DefaultExtractConcurrency = 3

// ChunkedExtractor splits text and extracts each chunk with the inner Extractor
type ChunkedExtractor struct {
	inner       extract.Extractor
	chunker     *TextChunker
	concurrency int
}

// NewChunkedExtractor wraps inner; concurrency <= 0 uses DefaultExtractConcurrency
func NewChunkedExtractor(inner extract.Extractor, chunker *TextChunker, concurrency int) *ChunkedExtractor {
	if chunker == nil {
		chunker = NewTextChunker(DefaultChunkSize)
	}
	if concurrency <= 0 {
		concurrency = DefaultExtractConcurrency
	}
	return &ChunkedExtractor{inner: inner, chunker: chunker, concurrency: concurrency}
}

// Extract returns the concatenated candidates of every chunk. The first
// failing chunk fails the whole extraction; any degraded chunk marks the
// result degraded.
func (ce *ChunkedExtractor) Extract(ctx context.Context, text string) extract.Result {
	chunks := ce.chunker.Split(text)
	if len(chunks) <= 1 {
		return ce.inner.Extract(ctx, text)
	}

	results := make([]extract.Result, len(chunks))
	var (
		failOnce  sync.Once
		firstFail extract.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ce.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			res := ce.inner.Extract(gctx, chunk)
			results[i] = res
			err := res.Error()
			if err != nil {
				failOnce.Do(func() { firstFail = res })
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return firstFail
	}

	merged := extract.Result{Status: extract.StatusSuccess, Source: results[0].Source}
	var candidates models.Candidates
	for _, res := range results {
		candidates.Entities = append(candidates.Entities, res.Candidates.Entities...)
		candidates.Relations = append(candidates.Relations, res.Candidates.Relations...)
		if res.Degraded {
			merged.Degraded = true
			merged.Source = res.Source
		}
	}
	merged.Candidates = candidates
	return merged
}
