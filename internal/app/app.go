// ABOUTME: Wires configuration, storage, the LLM client and the core components together
// ABOUTME: Shared by the muleta CLI, its mcp subcommand and the standalone MCP server
package app

import (
	"fmt"
	"time"

	"github.com/harper/muleta/internal/config"
	"github.com/harper/muleta/internal/core"
	"github.com/harper/muleta/internal/extract"
	"github.com/harper/muleta/internal/llm"
	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/normalize"
	"github.com/harper/muleta/internal/storage/sqlite"
)

// App holds every long-lived component of one process
type App struct {
	Config *config.Config
	Log    *logger.Logger
	Store  *sqlite.Store
	// LLM is nil when no key or base URL is configured
	LLM *llm.OpenAIClient

	Normalizer *core.Normalizer
	Cards      *core.CardGenerator
	Scheduler  *core.Scheduler
	Arguments  *core.ArgumentBuilder
	Gaps       *core.GapAnalyzer
	Clock      core.Clock
}

// Open opens the configured database and wires the components over it
func Open(cfg *config.Config, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)
	path := cfg.DBPath
	if path == "" {
		path = sqlite.DefaultDBPath()
	}
	store, err := sqlite.OpenStore(path)
	if err != nil {
		return nil, err
	}

	var client *llm.OpenAIClient
	if cfg.OpenAIKey != "" || cfg.BaseURL != "" {
		client, err = llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.BaseURL,
			ChatModel:  cfg.ChatModel,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
	} else {
		log.Info("OPENAI_API_KEY not set; extraction and card synthesis run in degraded mode")
	}

	a, err := New(cfg, store, client, nil, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Debug("storage opened", "path", path)
	return a, nil
}

// New wires the components over an already open store. A nil client runs
// extraction on the heuristic and cards on the templates; a nil clock uses
// time.Now.
func New(cfg *config.Config, store *sqlite.Store, client *llm.OpenAIClient, clock core.Clock, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)
	if clock == nil {
		clock = time.Now
	}
	sim, err := normalize.ByName(cfg.Similarity)
	if err != nil {
		return nil, err
	}

	// keep the interface nil rather than a typed nil pointer
	var primary extract.Extractor
	var synth core.CardSynthesizer
	if client != nil {
		primary = client
		synth = client
	}

	resilient := extract.NewResilientExtractor(primary, cfg.FallbackEnabled, extract.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryDelay,
	}, log)
	extractor := core.NewChunkedExtractor(resilient, core.NewTextChunker(cfg.ChunkSize), cfg.ExtractConcurrency)

	return &App{
		Config: cfg,
		Log:    log,
		Store:  store,
		LLM:    client,
		Normalizer: core.NewNormalizer(store, extractor, core.NormalizerConfig{
			Similarity:       sim,
			MergeThreshold:   cfg.MergeThreshold,
			MinContentLength: cfg.MinContentLength,
			MaxContentLength: cfg.MaxContentLength,
		}, log),
		Cards:     core.NewCardGenerator(store, core.NewFallbackSynthesizer(synth, log), log),
		Scheduler: core.NewScheduler(store, cfg.SuccessRateAlpha, clock, log),
		Arguments: core.NewArgumentBuilder(store, log),
		Gaps: core.NewGapAnalyzer(store, nil, core.GapConfig{
			Window:          cfg.GapWindow,
			Threshold:       cfg.GapThreshold,
			MinReviews:      cfg.GapMinReviews,
			MinObservations: cfg.GapMinObservations,
		}, clock, log),
		Clock: clock,
	}, nil
}

// GapJob builds the scheduled gap analysis job from the configured schedule
func (a *App) GapJob() (*core.GapJob, error) {
	return core.NewGapJob(a.Gaps, a.Config.GapSchedule, a.Log)
}

// Close releases the store
func (a *App) Close() error {
	return a.Store.Close()
}
