// ABOUTME: Normalizer resolves untrusted extractor candidates against the knowledge graph
// ABOUTME: Merges fuzzy duplicates, creates stubs for unknown endpoints, one batch per ingest
package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harper/muleta/internal/extract"
	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/normalize"
	"github.com/harper/muleta/internal/storage/sqlite"
)

const (
	// DefaultMergeThreshold is the similarity at or above which names merge
	DefaultMergeThreshold = 0.9
	// DefaultRelationStrength is assigned to extracted relations
	DefaultRelationStrength = 1.0
	DefaultMinContentLength = 10
	DefaultMaxContentLength = 50000
)

// GraphBatch is the write side of the Knowledge Store used during ingestion
type GraphBatch interface {
	EntitySnapshot(ctx context.Context) ([]models.Entity, error)
	CreateEntity(ctx context.Context, e *models.Entity) error
	UpdateEntity(ctx context.Context, e *models.Entity) error
	AddObservation(ctx context.Context, o *models.Observation) error
	FindRelation(ctx context.Context, fromID, toID string, relType models.RelationType) (*models.Relation, error)
	CreateRelation(ctx context.Context, r *models.Relation) error
	UpdateRelationEvidence(ctx context.Context, id, evidence string, strength float64) error
	Commit() error
	Rollback() error
}

// BatchOpener acquires the store's write turn
type BatchOpener func(ctx context.Context) (GraphBatch, error)

// NormalizerConfig holds the merge and content-bound settings
type NormalizerConfig struct {
	Similarity       normalize.Similarity
	MergeThreshold   float64
	MinContentLength int
	MaxContentLength int
}

// IngestRequest is raw text plus its source attribution
type IngestRequest struct {
	Text       string
	SourceType string
	SourcePath string
}

// SourceInfo attributes observations created by a batch
type SourceInfo struct {
	Type string
	Path string
}

// FlaggedStub is an entity auto-created for an unresolved relation endpoint
type FlaggedStub struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IngestSummary reports everything one batch did
type IngestSummary struct {
	EntitiesCreated  int           `json:"entities_created"`
	EntitiesMerged   int           `json:"entities_merged"`
	RelationsCreated int           `json:"relations_created"`
	RelationsSkipped int           `json:"relations_skipped"`
	Observations     int           `json:"observations_added,omitempty"`
	Flagged          []FlaggedStub `json:"flagged"`
	Warnings         []string      `json:"warnings"`
	Degraded         bool          `json:"degraded"`
	Extractor        string        `json:"extractor,omitempty"`
}

// Normalizer deduplicates candidates into the graph
type Normalizer struct {
	begin     BatchOpener
	extractor extract.Extractor
	cfg       NormalizerConfig
	log       *logger.Logger
}

// NewNormalizer wires a normalizer to the store's write batches
func NewNormalizer(store *sqlite.Store, extractor extract.Extractor, cfg NormalizerConfig, log *logger.Logger) *Normalizer {
	begin := func(ctx context.Context) (GraphBatch, error) {
		b, err := store.BeginBatch(ctx)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return newNormalizer(begin, extractor, cfg, log)
}

func newNormalizer(begin BatchOpener, extractor extract.Extractor, cfg NormalizerConfig, log *logger.Logger) *Normalizer {
	if cfg.Similarity == nil {
		cfg.Similarity = normalize.LevenshteinSimilarity{}
	}
	if cfg.MergeThreshold <= 0 {
		cfg.MergeThreshold = DefaultMergeThreshold
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = DefaultMinContentLength
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	return &Normalizer{
		begin:     begin,
		extractor: extractor,
		cfg:       cfg,
		log:       logger.OrNop(log).Component("normalizer"),
	}
}

// Ingest extracts candidates from text and applies them as one batch
func (n *Normalizer) Ingest(ctx context.Context, req IngestRequest) (*IngestSummary, error) {
	text := strings.TrimSpace(req.Text)
	length := utf8.RuneCountInString(text)
	if length < n.cfg.MinContentLength {
		return nil, models.NewValidationError("text", fmt.Sprintf("must be at least %d characters", n.cfg.MinContentLength))
	}
	if length > n.cfg.MaxContentLength {
		return nil, models.NewValidationError("text", fmt.Sprintf("must be at most %d characters", n.cfg.MaxContentLength))
	}
	if n.extractor == nil {
		return nil, fmt.Errorf("%w: no extractor configured", models.ErrExtraction)
	}

	start := time.Now()
	res := n.extractor.Extract(ctx, text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.Status != extract.StatusSuccess {
		return nil, res.Error()
	}
	n.log.Debug("extraction finished",
		"source", res.Source,
		"entities", len(res.Candidates.Entities),
		"relations", len(res.Candidates.Relations),
		"duration", time.Since(start))

	summary, err := n.Apply(ctx, res.Candidates, SourceInfo{Type: req.SourceType, Path: req.SourcePath})
	summary.Degraded = res.Degraded
	summary.Extractor = res.Source
	if err != nil {
		return summary, err
	}
	if res.Degraded {
		n.log.Warn("batch ingested in degraded mode", "extractor", res.Source)
	}
	return summary, nil
}

// Apply resolves candidates inside a single batch. On any storage failure or
// cancellation the batch is rolled back and a zeroed summary is returned.
func (n *Normalizer) Apply(ctx context.Context, cands models.Candidates, src SourceInfo) (*IngestSummary, error) {
	batch, err := n.begin(ctx)
	if err != nil {
		return &IngestSummary{}, err
	}
	defer func() { _ = batch.Rollback() }()

	snapshot, err := batch.EntitySnapshot(ctx)
	if err != nil {
		return &IngestSummary{}, err
	}

	run := &ingestRun{
		n:       n,
		batch:   batch,
		src:     src,
		byKey:   make(map[string]*models.Entity, len(snapshot)),
		summary: &IngestSummary{},
	}
	for i := range snapshot {
		run.index(&snapshot[i])
	}

	for i, c := range cands.Entities {
		if err := ctx.Err(); err != nil {
			return n.abort(err)
		}
		if err := run.entity(ctx, i, c); err != nil {
			return n.abort(err)
		}
	}
	for i, c := range cands.Observations {
		if err := ctx.Err(); err != nil {
			return n.abort(err)
		}
		if err := run.observation(ctx, i, c); err != nil {
			return n.abort(err)
		}
	}
	for i, c := range cands.Relations {
		if err := ctx.Err(); err != nil {
			return n.abort(err)
		}
		if err := run.relation(ctx, i, c); err != nil {
			return n.abort(err)
		}
	}

	if err := batch.Commit(); err != nil {
		return n.abort(err)
	}

	s := run.summary
	n.log.Info("batch committed",
		"created", s.EntitiesCreated,
		"merged", s.EntitiesMerged,
		"relations_created", s.RelationsCreated,
		"relations_skipped", s.RelationsSkipped,
		"flagged", len(s.Flagged),
		"warnings", len(s.Warnings))
	return s, nil
}

func (n *Normalizer) abort(err error) (*IngestSummary, error) {
	n.log.Error("batch rolled back", "error", err)
	return &IngestSummary{}, err
}

// ingestRun is the state of one batch: the canonical-name index grows as
// entities are created so later candidates see them
type ingestRun struct {
	n       *Normalizer
	batch   GraphBatch
	src     SourceInfo
	byKey   map[string]*models.Entity
	keys    []string
	summary *IngestSummary
}

func (r *ingestRun) index(e *models.Entity) {
	if _, ok := r.byKey[e.CanonicalName]; !ok {
		r.keys = append(r.keys, e.CanonicalName)
	}
	r.byKey[e.CanonicalName] = e
}

func (r *ingestRun) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.summary.Warnings = append(r.summary.Warnings, msg)
	r.n.log.Warn("candidate skipped", "reason", msg)
}

func (r *ingestRun) lookup(name string) (*models.Entity, float64) {
	key := normalize.Canonical(name)
	m, ok := normalize.BestMatch(r.n.cfg.Similarity, key, r.keys, r.n.cfg.MergeThreshold)
	if !ok {
		return nil, 0
	}
	return r.byKey[m.Key], m.Score
}

func (r *ingestRun) entity(ctx context.Context, i int, c models.CandidateEntity) error {
	name := normalize.DisplayName(c.Name)
	if normalize.Canonical(name) == "" {
		r.warn("entity %d: missing name", i)
		return nil
	}
	entityType, ok := models.ParseEntityType(c.Type)
	if !ok {
		r.warn("entity %d (%s): empty type", i, name)
		return nil
	}
	description := strings.TrimSpace(c.Description)

	if existing, score := r.lookup(name); existing != nil {
		if err := r.merge(ctx, existing, entityType, description); err != nil {
			return err
		}
		content := description
		if content == "" {
			content = "Mencionado como " + name
		}
		if err := r.observe(ctx, existing.ID, content, score); err != nil {
			return err
		}
		r.summary.EntitiesMerged++
		return nil
	}

	e := &models.Entity{Name: name, Type: entityType, Description: description}
	if err := r.batch.CreateEntity(ctx, e); err != nil {
		return err
	}
	r.index(e)
	if description != "" {
		if err := r.observe(ctx, e.ID, description, 1.0); err != nil {
			return err
		}
	}
	r.summary.EntitiesCreated++
	return nil
}

// merge adopts concrete details for stubs and fills a missing description
func (r *ingestRun) merge(ctx context.Context, e *models.Entity, entityType models.EntityType, description string) error {
	changed := false
	if e.NeedsReview && entityType != models.EntityUnknown {
		e.Type = entityType
		e.NeedsReview = false
		changed = true
	}
	if e.Description == "" && description != "" {
		e.Description = description
		changed = true
	}
	if !changed {
		return nil
	}
	return r.batch.UpdateEntity(ctx, e)
}

func (r *ingestRun) observe(ctx context.Context, entityID, content string, confidence float64) error {
	return r.batch.AddObservation(ctx, &models.Observation{
		EntityID:   entityID,
		Content:    content,
		SourceType: r.src.Type,
		SourcePath: r.src.Path,
		Confidence: confidence,
	})
}

// observation attaches a free-standing note to a resolved entity. Unknown
// entities are skipped rather than stubbed since a note carries no type.
func (r *ingestRun) observation(ctx context.Context, i int, c models.CandidateObservation) error {
	name := normalize.DisplayName(c.EntityName)
	content := strings.TrimSpace(c.Content)
	if normalize.Canonical(name) == "" || content == "" {
		r.warn("observation %d: missing entity or content", i)
		return nil
	}
	e, _ := r.lookup(name)
	if e == nil {
		r.warn("observation %d: unknown entity %s", i, name)
		return nil
	}
	confidence := c.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 1.0
	}
	if err := r.observe(ctx, e.ID, content, confidence); err != nil {
		return err
	}
	r.summary.Observations++
	return nil
}

// endpoint resolves a relation endpoint, creating a flagged stub if needed
func (r *ingestRun) endpoint(ctx context.Context, name string) (*models.Entity, error) {
	if e, _ := r.lookup(name); e != nil {
		return e, nil
	}
	stub := &models.Entity{Name: name, Type: models.EntityUnknown, NeedsReview: true}
	if err := r.batch.CreateEntity(ctx, stub); err != nil {
		return nil, err
	}
	r.index(stub)
	r.summary.Flagged = append(r.summary.Flagged, FlaggedStub{ID: stub.ID, Name: stub.Name})
	return stub, nil
}

func (r *ingestRun) relation(ctx context.Context, i int, c models.CandidateRelation) error {
	fromName := normalize.DisplayName(c.FromName)
	toName := normalize.DisplayName(c.ToName)
	if normalize.Canonical(fromName) == "" || normalize.Canonical(toName) == "" {
		r.warn("relation %d: missing endpoint name", i)
		r.summary.RelationsSkipped++
		return nil
	}

	from, err := r.endpoint(ctx, fromName)
	if err != nil {
		return err
	}
	to, err := r.endpoint(ctx, toName)
	if err != nil {
		return err
	}
	if from.ID == to.ID {
		r.warn("relation %d: %s resolves to itself", i, fromName)
		r.summary.RelationsSkipped++
		return nil
	}

	relType := models.ParseRelationType(c.Type)
	evidence := strings.TrimSpace(c.Evidence)
	existing, err := r.batch.FindRelation(ctx, from.ID, to.ID, relType)
	if err != nil {
		return err
	}
	if existing != nil {
		if evidence != "" && evidence != existing.Evidence {
			if err := r.batch.UpdateRelationEvidence(ctx, existing.ID, evidence, existing.Strength); err != nil {
				return err
			}
		}
		r.summary.RelationsSkipped++
		return nil
	}

	rel := &models.Relation{
		FromEntityID: from.ID,
		ToEntityID:   to.ID,
		Type:         relType,
		Strength:     DefaultRelationStrength,
		Evidence:     evidence,
	}
	if err := r.batch.CreateRelation(ctx, rel); err != nil {
		return err
	}
	r.summary.RelationsCreated++
	return nil
}
