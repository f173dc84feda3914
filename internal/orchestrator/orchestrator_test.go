package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelkg/sentinel/internal/scrape"
	"github.com/sentinelkg/sentinel/internal/store"
)

type fakeScraper struct {
	doc scrape.Document
	err error
}

func (f *fakeScraper) Name() string { return "fake" }

func (f *fakeScraper) Scrape(ctx context.Context, url string) (scrape.Document, error) {
	if f.err != nil {
		return scrape.Document{}, f.err
	}
	return f.doc, nil
}

func (f *fakeScraper) ScrapeAndHash(ctx context.Context, url string) (string, string, error) {
	doc, err := f.Scrape(ctx, url)
	if err != nil {
		return "", "", err
	}
	return doc.Text, doc.Hash, nil
}

type fakeExtractor struct {
	bundle store.Bundle
}

func (f *fakeExtractor) Extract(ctx context.Context, sourceURL, text string) store.Bundle {
	return f.bundle
}

type fakeGraphStore struct {
	docHash     string
	docKnown    bool
	markedN     int64
	upserted    store.Bundle
	upsertStats store.Stats
	upsertErr   error
	setStateErr error
	stale       []string
	findErr     error

	setCalls    []string
	verifyCalls int
}

func (f *fakeGraphStore) GetDocumentState(ctx context.Context, sourceURL string) (string, bool, error) {
	return f.docHash, f.docKnown, nil
}

func (f *fakeGraphStore) SetDocumentState(ctx context.Context, sourceURL, contentHash string) error {
	f.setCalls = append(f.setCalls, contentHash)
	return f.setStateErr
}

func (f *fakeGraphStore) MarkVerified(ctx context.Context, sourceURL string) (int64, error) {
	f.verifyCalls++
	return f.markedN, nil
}

func (f *fakeGraphStore) UpsertBundle(ctx context.Context, bundle store.Bundle, sourceURL string) (store.Stats, error) {
	f.upserted = bundle
	return f.upsertStats, f.upsertErr
}

func (f *fakeGraphStore) FindStale(ctx context.Context, daysThreshold int) ([]string, error) {
	return f.stale, f.findErr
}

func newTestOrchestrator(sc scrape.Scraper, ex Extractor, gs GraphStore) *Orchestrator {
	return &Orchestrator{
		scraper:   sc,
		extractor: ex,
		store:     gs,
		heal:      HealConfig{DaysThreshold: 7, IntervalHours: 1, Parallelism: 2},
		logger:    zap.NewNop(),
	}
}

func TestProcessURLSuccess(t *testing.T) {
	sc := &fakeScraper{doc: scrape.Document{URL: "u", Text: "hello", Hash: "h1"}}
	ex := &fakeExtractor{bundle: store.Bundle{
		Edges: []store.EdgeInput{{Source: "A", Target: "B", Relation: "FOUNDED_BY", Confidence: 0.9}},
	}}
	gs := &fakeGraphStore{docKnown: false, upsertStats: store.Stats{EdgesCreated: 1}}

	o := newTestOrchestrator(sc, ex, gs)
	result := o.ProcessURL(context.Background(), "u")

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, result.Stats.EdgesCreated)
	require.Len(t, gs.setCalls, 1)
	assert.Equal(t, "h1", gs.setCalls[0])
}

func TestProcessURLUnchangedVerifiesInsteadOfExtracting(t *testing.T) {
	sc := &fakeScraper{doc: scrape.Document{URL: "u", Text: "hello", Hash: "h1"}}
	ex := &fakeExtractor{bundle: store.Bundle{
		Edges: []store.EdgeInput{{Source: "A", Target: "B", Relation: "X", Confidence: 0.9}},
	}}
	gs := &fakeGraphStore{docKnown: true, docHash: "h1", markedN: 3}

	o := newTestOrchestrator(sc, ex, gs)
	result := o.ProcessURL(context.Background(), "u")

	assert.Equal(t, OutcomeUnchangedVerified, result.Outcome)
	assert.Equal(t, 3, result.Stats.EdgesVerified)
	assert.Equal(t, 1, gs.verifyCalls)
	assert.Empty(t, gs.upserted.Edges)
}

func TestProcessURLScrapeFailure(t *testing.T) {
	sc := &fakeScraper{err: errors.New("network down")}
	ex := &fakeExtractor{}
	gs := &fakeGraphStore{}

	o := newTestOrchestrator(sc, ex, gs)
	result := o.ProcessURL(context.Background(), "u")

	assert.Equal(t, OutcomeScrapeFailed, result.Outcome)
	require.Error(t, result.Err)
}

func TestProcessURLNoFactsRecordsDocumentState(t *testing.T) {
	sc := &fakeScraper{doc: scrape.Document{URL: "u", Text: "hello", Hash: "h1"}}
	ex := &fakeExtractor{bundle: store.Bundle{}}
	gs := &fakeGraphStore{docKnown: false}

	o := newTestOrchestrator(sc, ex, gs)
	result := o.ProcessURL(context.Background(), "u")

	assert.Equal(t, OutcomeNoFacts, result.Outcome)
	require.Len(t, gs.setCalls, 1)
	assert.Equal(t, "h1", gs.setCalls[0])
}

func TestHealOnceSkipsWhenNothingStale(t *testing.T) {
	sc := &fakeScraper{}
	ex := &fakeExtractor{}
	gs := &fakeGraphStore{stale: nil}

	o := newTestOrchestrator(sc, ex, gs)
	status := NewStatus()
	err := o.healOnce(context.Background(), status)

	require.NoError(t, err)
	snap := status.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 0, snap.Total)
}

func TestHealOnceProcessesEveryStaleURL(t *testing.T) {
	sc := &fakeScraper{doc: scrape.Document{URL: "u", Text: "hello", Hash: "h1"}}
	ex := &fakeExtractor{bundle: store.Bundle{}}
	gs := &fakeGraphStore{stale: []string{"https://a.example", "https://b.example"}}

	o := newTestOrchestrator(sc, ex, gs)
	status := NewStatus()
	err := o.healOnce(context.Background(), status)

	require.NoError(t, err)
	snap := status.Snapshot()
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 2, snap.Completed)
}

func TestRunHealingLoopTracksLoopAlive(t *testing.T) {
	sc := &fakeScraper{}
	ex := &fakeExtractor{}
	gs := &fakeGraphStore{}

	o := newTestOrchestrator(sc, ex, gs)
	o.heal.IntervalHours = 1 // long enough that the ticker never fires during this test

	status := NewStatus()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- o.RunHealingLoop(ctx, status) }()

	assert.Eventually(t, func() bool {
		return status.AgentStatus() == "running"
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "stopped", status.AgentStatus())
}
