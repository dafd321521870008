// ABOUTME: GapAnalyzer flags weak understanding, missing relations and missing evidence
// ABOUTME: Findings are upserted by (entity, gap type) in one batch; resolution is external
package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
)

const (
	DefaultGapWindow          = 5
	DefaultGapThreshold       = 0.6
	DefaultGapMinReviews      = 3
	DefaultGapMinObservations = 2
)

// Sources recorded in identified_from
const (
	SourceReviews    = "reviews"
	SourceAssessment = "assessment"
	SourceGraph      = "graph"
)

// AssessmentFeed supplies external per-entity scores in [0,1]
type AssessmentFeed interface {
	Scores(ctx context.Context) ([]models.AssessmentScore, error)
}

// StaticFeed is an AssessmentFeed over a fixed score list
type StaticFeed []models.AssessmentScore

// Scores implements AssessmentFeed
func (f StaticFeed) Scores(context.Context) ([]models.AssessmentScore, error) {
	return f, nil
}

// GapConfig holds the analysis thresholds
type GapConfig struct {
	Window          int
	Threshold       float64
	MinReviews      int
	MinObservations int
}

func (c GapConfig) withDefaults() GapConfig {
	if c.Window <= 0 {
		c.Window = DefaultGapWindow
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultGapThreshold
	}
	if c.MinReviews <= 0 {
		c.MinReviews = DefaultGapMinReviews
	}
	if c.MinObservations <= 0 {
		c.MinObservations = DefaultGapMinObservations
	}
	return c
}

// GapReport summarizes one analysis run
type GapReport struct {
	AnalyzedAt time.Time              `json:"analyzed_at"`
	Entities   int                    `json:"entities"`
	Gaps       []models.KnowledgeGap  `json:"gaps"`
	ByType     map[models.GapType]int `json:"by_type"`
}

// GapAnalyzer derives knowledge gaps from review history and graph shape
type GapAnalyzer struct {
	store *sqlite.Store
	feed  AssessmentFeed
	cfg   GapConfig
	clock Clock
	log   *logger.Logger
}

// NewGapAnalyzer creates an analyzer; feed may be nil
func NewGapAnalyzer(store *sqlite.Store, feed AssessmentFeed, cfg GapConfig, clock Clock, log *logger.Logger) *GapAnalyzer {
	if clock == nil {
		clock = time.Now
	}
	return &GapAnalyzer{
		store: store,
		feed:  feed,
		cfg:   cfg.withDefaults(),
		clock: clock,
		log:   logger.OrNop(log).Component("gap_analyzer"),
	}
}

// WindowSuccessRate is the pass ratio over the last window reviews
func WindowSuccessRate(reviews []models.Review, window int) float64 {
	if len(reviews) == 0 {
		return 0
	}
	if window > 0 && len(reviews) > window {
		reviews = reviews[len(reviews)-window:]
	}
	passed := 0
	for _, r := range reviews {
		if r.Passed() {
			passed++
		}
	}
	return float64(passed) / float64(len(reviews))
}

// Analyze runs every rule and upserts the findings. Gaps whose condition no
// longer holds are left as they are.
func (ga *GapAnalyzer) Analyze(ctx context.Context) (*GapReport, error) {
	evidence, err := ga.store.EntityEvidenceCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count evidence: %w", err)
	}
	reviews, err := ga.store.ReviewsByEntity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	assessments, err := ga.assessments(ctx)
	if err != nil {
		return nil, err
	}

	var found []models.KnowledgeGap
	for _, ev := range evidence {
		if g, ok := ga.weakUnderstanding(ev, reviews[ev.EntityID], assessments[ev.EntityID]); ok {
			found = append(found, g)
		}
		if g, ok := ga.missingRelations(ev); ok {
			found = append(found, g)
		}
		if g, ok := ga.insufficientEvidence(ev); ok {
			found = append(found, g)
		}
	}

	batch, err := ga.store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = batch.Rollback() }()
	for i := range found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := batch.UpsertGap(ctx, &found[i]); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Confidence > found[j].Confidence })
	report := &GapReport{
		AnalyzedAt: ga.clock().UTC(),
		Entities:   len(evidence),
		Gaps:       found,
		ByType:     make(map[models.GapType]int),
	}
	for _, g := range found {
		report.ByType[g.GapType]++
	}
	ga.log.Info("gap analysis finished", "entities", report.Entities, "gaps", len(found))
	return report, nil
}

func (ga *GapAnalyzer) assessments(ctx context.Context) (map[string]models.AssessmentScore, error) {
	scores := make(map[string]models.AssessmentScore)
	if ga.feed == nil {
		return scores, nil
	}
	list, err := ga.feed.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read assessment feed: %w", err)
	}
	for _, s := range list {
		scores[s.EntityID] = s
	}
	return scores, nil
}

func (ga *GapAnalyzer) weakUnderstanding(ev sqlite.EntityEvidence, reviews []models.Review, assessment models.AssessmentScore) (models.KnowledgeGap, bool) {
	threshold := ga.cfg.Threshold
	confidence := 0.0
	var sources []string
	detail := ""

	if len(reviews) >= ga.cfg.MinReviews {
		rate := WindowSuccessRate(reviews, ga.cfg.Window)
		if rate < threshold {
			confidence = (threshold - rate) / threshold
			sources = append(sources, SourceReviews)
			detail = fmt.Sprintf("taxa de acerto de %.0f%% nas últimas revisões", rate*100)
		}
	}
	if assessment.EntityID != "" && assessment.Score < threshold {
		c := (threshold - assessment.Score) / threshold
		if assessment.Confidence > 0 {
			c *= assessment.Confidence
		}
		confidence = math.Max(confidence, c)
		sources = append(sources, SourceAssessment)
		if detail == "" {
			detail = fmt.Sprintf("nota de avaliação %.2f", assessment.Score)
		}
	}
	if len(sources) == 0 {
		return models.KnowledgeGap{}, false
	}

	from := sources[0]
	if len(sources) > 1 {
		from = sources[0] + "+" + sources[1]
	}
	return models.KnowledgeGap{
		EntityID:       ev.EntityID,
		EntityName:     ev.Name,
		GapType:        models.GapWeakUnderstanding,
		Confidence:     clamp01(confidence),
		IdentifiedFrom: from,
		Suggestion:     fmt.Sprintf("Revise %s (%s) e refaça os cartões.", ev.Name, detail),
	}, true
}

func (ga *GapAnalyzer) missingRelations(ev sqlite.EntityEvidence) (models.KnowledgeGap, bool) {
	if ev.Relations > 0 || ev.Observations < ga.cfg.MinObservations {
		return models.KnowledgeGap{}, false
	}
	// more notes without any connection is a stronger signal
	confidence := 0.5 + 0.1*float64(ev.Observations-ga.cfg.MinObservations)
	return models.KnowledgeGap{
		EntityID:       ev.EntityID,
		EntityName:     ev.Name,
		GapType:        models.GapMissingRelations,
		Confidence:     clamp01(confidence),
		IdentifiedFrom: SourceGraph,
		Suggestion:     fmt.Sprintf("%s tem %d observações mas nenhuma relação. Conecte-o a outros conceitos.", ev.Name, ev.Observations),
	}, true
}

func (ga *GapAnalyzer) insufficientEvidence(ev sqlite.EntityEvidence) (models.KnowledgeGap, bool) {
	if ev.Observations > 0 {
		return models.KnowledgeGap{}, false
	}
	confidence := 0.9
	if ev.Relations > 0 {
		confidence = 0.6
	}
	return models.KnowledgeGap{
		EntityID:       ev.EntityID,
		EntityName:     ev.Name,
		GapType:        models.GapInsufficientEvidence,
		Confidence:     confidence,
		IdentifiedFrom: SourceGraph,
		Suggestion:     fmt.Sprintf("Adicione observações ou fontes sobre %s.", ev.Name),
	}, true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
