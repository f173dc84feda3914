// Package orchestrator drives a single URL through FETCH -> COMPARE ->
// VERIFY/EXTRACT -> UPSERT and runs the background healing loop that
// re-walks stale sources.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sentinelkg/sentinel/internal/extract"
	"github.com/sentinelkg/sentinel/internal/scrape"
	"github.com/sentinelkg/sentinel/internal/store"
)

// Outcome is ProcessURL's terminal state.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeUnchangedVerified Outcome = "unchanged_verified"
	OutcomeNoFacts           Outcome = "no_facts"
	OutcomeScrapeFailed      Outcome = "scrape_failed"
	OutcomeExtractFailed     Outcome = "extract_failed"
	OutcomeStoreFailed       Outcome = "store_failed"
)

// Result describes how ProcessURL finished for one URL.
type Result struct {
	URL     string
	Outcome Outcome
	Stats   store.Stats
	Err     error
}

// HealConfig controls the background healing loop.
type HealConfig struct {
	DaysThreshold int
	IntervalHours int
	Parallelism   int
}

// Per-call deadlines bounding a single ProcessURL invocation. A hanging
// vendor or LLM call must not be able to block the healing pool forever.
const (
	scrapeTimeout  = 60 * time.Second
	extractTimeout = 120 * time.Second
)

// Extractor is the subset of *extract.Extractor that ProcessURL needs,
// letting tests inject a fake instead of a real LLM client.
type Extractor interface {
	Extract(ctx context.Context, sourceURL, text string) store.Bundle
}

// GraphStore is the subset of *store.Store that the orchestrator needs,
// letting tests inject a fake instead of a real Neo4j connection.
type GraphStore interface {
	GetDocumentState(ctx context.Context, sourceURL string) (string, bool, error)
	SetDocumentState(ctx context.Context, sourceURL, contentHash string) error
	MarkVerified(ctx context.Context, sourceURL string) (int64, error)
	UpsertBundle(ctx context.Context, bundle store.Bundle, sourceURL string) (store.Stats, error)
	FindStale(ctx context.Context, daysThreshold int) ([]string, error)
}

// Orchestrator wires a scraper, extractor, and store into the spec's
// ingest and healing state machines.
type Orchestrator struct {
	scraper   scrape.Scraper
	extractor Extractor
	store     GraphStore
	heal      HealConfig
	logger    *zap.Logger
}

func New(scraper scrape.Scraper, extractor *extract.Extractor, st *store.Store, heal HealConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{scraper: scraper, extractor: extractor, store: st, heal: heal, logger: logger}
}

// ProcessURL runs one URL through the full ingest pipeline:
//
//  1. FETCH: scrape the URL's current content.
//  2. COMPARE: hash the content against the last-known document state.
//  3. If unchanged, VERIFY: mark every live edge from this source as
//     re-confirmed without touching the LLM.
//  4. If changed (or never seen), EXTRACT: propose a fact bundle.
//  5. UPSERT: reconcile the bundle into the graph.
func (o *Orchestrator) ProcessURL(ctx context.Context, url string) Result {
	scrapeCtx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	doc, err := o.scraper.Scrape(scrapeCtx, url)
	cancel()
	if err != nil {
		o.logger.Warn("scrape failed", zap.String("url", url), zap.Error(err))
		return Result{URL: url, Outcome: OutcomeScrapeFailed, Err: NewScrapeError(url, err)}
	}

	previousHash, known, err := o.store.GetDocumentState(ctx, url)
	if err != nil {
		return Result{URL: url, Outcome: OutcomeStoreFailed, Err: err}
	}

	if known && previousHash == doc.Hash {
		n, err := o.store.MarkVerified(ctx, url)
		if err != nil {
			return Result{URL: url, Outcome: OutcomeStoreFailed, Err: err}
		}
		o.logger.Info("document unchanged, edges re-verified", zap.String("url", url), zap.Int64("edges_verified", n))
		return Result{URL: url, Outcome: OutcomeUnchangedVerified, Stats: store.Stats{EdgesVerified: int(n)}}
	}

	extractCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	bundle := o.extractor.Extract(extractCtx, url, doc.Text)
	cancel()
	if len(bundle.Edges) == 0 {
		if err := o.store.SetDocumentState(ctx, url, doc.Hash); err != nil {
			return Result{URL: url, Outcome: OutcomeStoreFailed, Err: err}
		}
		o.logger.Info("extraction produced no facts", zap.String("url", url))
		return Result{URL: url, Outcome: OutcomeNoFacts}
	}

	stats, err := o.store.UpsertBundle(ctx, bundle, url)
	if err != nil {
		return Result{URL: url, Outcome: OutcomeStoreFailed, Err: err}
	}
	if err := o.store.SetDocumentState(ctx, url, doc.Hash); err != nil {
		return Result{URL: url, Outcome: OutcomeStoreFailed, Err: err}
	}

	o.logger.Info("url processed",
		zap.String("url", url),
		zap.Int("nodes_merged", stats.NodesMerged),
		zap.Int("edges_created", stats.EdgesCreated),
		zap.Int("edges_verified", stats.EdgesVerified),
		zap.Int("edges_invalidated", stats.EdgesInvalidated))

	return Result{URL: url, Outcome: OutcomeSuccess, Stats: stats}
}

// RunHealingLoop re-walks every source past its staleness threshold on a
// fixed interval, bounding concurrency with an errgroup and pacing
// individual fetches with a rate limiter, until ctx is canceled.
//
// ctx governs only the interval sleep: a shutdown signal stops the loop
// from starting another pass, but a pass already underway runs to
// completion (or its own per-URL deadline) on context.Background(), so
// canceling ctx never aborts an in-flight scrape or extract call.
func (o *Orchestrator) RunHealingLoop(ctx context.Context, status *Status) error {
	interval := time.Duration(o.heal.IntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	status.loopStarted()
	defer status.loopStopped()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.healOnce(context.Background(), status); err != nil {
				o.logger.Error("healing pass failed", zap.Error(err))
			}
		}
	}
}

// HealNow runs a single healing pass immediately, outside the regular
// interval — used by the on-demand "heal" CLI command and job kind.
func (o *Orchestrator) HealNow(ctx context.Context, status *Status) error {
	return o.healOnce(ctx, status)
}

func (o *Orchestrator) healOnce(ctx context.Context, status *Status) error {
	stale, err := o.store.FindStale(ctx, o.heal.DaysThreshold)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		o.logger.Info("healing pass: no stale sources")
		return nil
	}

	status.beginPass(len(stale))
	defer status.endPass()

	parallelism := o.heal.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	limiter := rate.NewLimiter(rate.Every(time.Second), parallelism)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, url := range stale {
		url := url
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			result := o.ProcessURL(gctx, url)
			status.recordResult(result)
			return nil
		})
	}

	return g.Wait()
}
