// Package pipeline orchestrates one discovery run: fetch every configured
// board, normalize and deduplicate the postings into the store, then enrich
// whatever has never been enriched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"internhunter/internal/dedup"
	"internhunter/internal/enrich"
	"internhunter/internal/job"
	"internhunter/internal/logger"
	"internhunter/internal/source"
	"internhunter/internal/store"
)

const (
	defaultFetchConcurrency  = 4
	defaultEnrichConcurrency = 2
)

// Config tunes one run. Zero values fall back to defaults.
type Config struct {
	FetchConcurrency  int
	EnrichConcurrency int
	// EnrichAll disables the internship keyword prefilter and sends every
	// unenriched job to the provider.
	EnrichAll bool
}

// Summary is what one run did. Persisted in the run record and logged at
// completion.
type Summary struct {
	RunID             string
	Boards            int
	Fetched           int
	NewJobs           int
	UpdatedJobs       int
	Duplicates        int
	Skipped           int
	EnrichedJobs      int
	FailedEnrichments int
	// Relistings are advisory cross-source matches surfaced by the
	// deduplicator. Both jobs stay stored; the notes are for review.
	Relistings []store.Relisting
	Errors     []store.RunError
}

type Pipeline struct {
	clients map[source.Platform]source.Client
	store   *store.Store
	dedup   *dedup.Deduplicator
	// engine is nil when no AI provider is configured; discovery still runs,
	// jobs simply stay unenriched.
	engine *enrich.Engine
	logger *zap.Logger
	cfg    Config
}

func New(clients []source.Client, s *store.Store, engine *enrich.Engine, log *zap.Logger, cfg Config) *Pipeline {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = defaultFetchConcurrency
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = defaultEnrichConcurrency
	}

	byPlatform := make(map[source.Platform]source.Client, len(clients))
	for _, c := range clients {
		byPlatform[c.Platform()] = c
	}

	return &Pipeline{
		clients: byPlatform,
		store:   s,
		dedup:   dedup.New(s, log),
		engine:  engine,
		logger:  log,
		cfg:     cfg,
	}
}

// Run executes one full discovery run. Partial failures are accumulated in
// the run record; the run itself completes unless the context is canceled.
func (p *Pipeline) Run(ctx context.Context, boards []source.Board) (*Summary, error) {
	runID := uuid.NewString()
	log := p.logger.With(zap.String(logger.FieldRunID, runID))

	rec, err := p.store.StartRun(ctx, runID, len(boards))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	summary := &Summary{RunID: runID, Boards: len(boards)}
	var mu sync.Mutex

	log.Info("discovery run started", zap.Int("boards", len(boards)))

	p.discover(ctx, log, boards, summary, &mu)

	if p.engine != nil {
		p.enrichPending(ctx, log, summary, &mu)
	}

	rec.NewJobs = summary.NewJobs
	rec.EnrichedJobs = summary.EnrichedJobs
	rec.Relistings = summary.Relistings
	rec.Errors = summary.Errors
	if err := p.store.CloseRun(ctx, rec); err != nil {
		return summary, fmt.Errorf("close run: %w", err)
	}

	log.Info("discovery run finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("new_jobs", summary.NewJobs),
		zap.Int("updated_jobs", summary.UpdatedJobs),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("enriched_jobs", summary.EnrichedJobs),
		zap.Int("failed_enrichments", summary.FailedEnrichments),
		zap.Int("relistings", len(summary.Relistings)),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (p *Pipeline) discover(ctx context.Context, log *zap.Logger, boards []source.Board, summary *Summary, mu *sync.Mutex) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FetchConcurrency)

	for _, board := range boards {
		g.Go(func() error {
			p.discoverBoard(gctx, log, board, summary, mu)
			return nil
		})
	}
	// Goroutines never return errors; failures land in summary.Errors.
	_ = g.Wait()
}

func (p *Pipeline) discoverBoard(ctx context.Context, log *zap.Logger, board source.Board, summary *Summary, mu *sync.Mutex) {
	client, ok := p.clients[board.Platform]
	if !ok {
		recordError(summary, mu, store.RunError{
			Stage: "fetch", Board: board.Name,
			Message: fmt.Sprintf("no client for platform %q", board.Platform),
		})
		return
	}

	raws, err := client.Fetch(ctx, board)
	if err != nil {
		log.Warn("board fetch failed", zap.String("board", board.Name), zap.Error(err))
		recordError(summary, mu, store.RunError{
			Stage: "fetch", Board: board.Name, Message: err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	for _, raw := range raws {
		mu.Lock()
		summary.Fetched++
		mu.Unlock()

		posting, err := job.Normalize(raw, now)
		if err != nil {
			recordError(summary, mu, store.RunError{
				Stage: "normalize", Board: board.Name, Message: err.Error(),
			})
			continue
		}

		if err := p.resolveAndStore(ctx, posting, summary, mu); err != nil {
			recordError(summary, mu, store.RunError{
				Stage: "store", Board: board.Name, JobID: posting.ID, Message: err.Error(),
			})
		}
	}

	log.Debug("board processed", zap.String("board", board.Name), zap.Int("postings", len(raws)))
}

func (p *Pipeline) resolveAndStore(ctx context.Context, posting *job.Posting, summary *Summary, mu *sync.Mutex) error {
	res, err := p.dedup.Resolve(ctx, posting)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	switch res.Kind {
	case dedup.KindNew:
		if err := p.store.InsertJob(ctx, posting); err != nil {
			return err
		}
		summary.NewJobs++
		if res.Heuristic != nil {
			summary.Relistings = append(summary.Relistings, store.Relisting{
				JobID:        posting.ID,
				MatchedJobID: res.Heuristic.JobID,
				Similarity:   res.Heuristic.Similarity,
			})
		}
	case dedup.KindUpdated:
		// Enrichment is preserved; re-enrichment is a separate explicit step.
		if err := p.store.UpdateJobContent(ctx, posting); err != nil {
			return err
		}
		summary.UpdatedJobs++
	case dedup.KindDuplicate:
		summary.Duplicates++
	}
	return nil
}

func (p *Pipeline) enrichPending(ctx context.Context, log *zap.Logger, summary *Summary, mu *sync.Mutex) {
	pending, err := p.store.ListUnenriched(ctx)
	if err != nil {
		recordError(summary, mu, store.RunError{Stage: "enrich", Message: err.Error()})
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EnrichConcurrency)

	for _, posting := range pending {
		if !p.cfg.EnrichAll && !LooksLikeInternship(posting.Title) {
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			p.enrichOne(gctx, log, posting, summary, mu)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) enrichOne(ctx context.Context, log *zap.Logger, posting *job.Posting, summary *Summary, mu *sync.Mutex) {
	enrichment, err := p.engine.Enrich(ctx, posting)
	if err != nil {
		log.Warn("enrichment failed",
			zap.String(logger.FieldJobID, posting.ID),
			zap.Error(err),
		)
		recordError(summary, mu, store.RunError{
			Stage: "enrich", JobID: posting.ID, Message: err.Error(),
		})
		if errors.Is(err, enrich.ErrUnusableOutput) {
			if markErr := p.store.MarkEnrichmentFailed(ctx, posting.ID); markErr != nil {
				recordError(summary, mu, store.RunError{
					Stage: "enrich", JobID: posting.ID, Message: markErr.Error(),
				})
			}
			mu.Lock()
			summary.FailedEnrichments++
			mu.Unlock()
		}
		return
	}

	if err := p.store.WriteEnrichment(ctx, posting.ID, enrichment); err != nil {
		recordError(summary, mu, store.RunError{
			Stage: "enrich", JobID: posting.ID, Message: err.Error(),
		})
		return
	}

	mu.Lock()
	summary.EnrichedJobs++
	mu.Unlock()
}

// LooksLikeInternship is the keyword prefilter applied before spending an AI
// call on a posting. Postings that fail it stay unenriched and visible.
func LooksLikeInternship(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range []string{"intern", "co-op", "coop", "summer analyst"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func recordError(summary *Summary, mu *sync.Mutex, e store.RunError) {
	mu.Lock()
	defer mu.Unlock()
	summary.Errors = append(summary.Errors, e)
}
