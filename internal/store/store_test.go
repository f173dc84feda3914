package store

import (
	"context"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelkg/sentinel/internal/graph"
)

// TestUpsertBundleCaseABC exercises the Case A/B/C diff against a real
// Neo4j instance, skipping when one isn't reachable.
func TestUpsertBundleCaseABC(t *testing.T) {
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext("bolt://localhost:7687", neo4j.BasicAuth("neo4j", "password", ""))
	if err != nil {
		t.Skipf("neo4j not available, skipping integration test: %v", err)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Skipf("neo4j not reachable, skipping integration test: %v", err)
	}

	client, err := graph.NewClient(ctx, graph.Config{URI: "bolt://localhost:7687", User: "neo4j", Password: "password"}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close(ctx)

	t.Cleanup(func() {
		_, _ = client.ClearAll(ctx)
	})

	s := New(client, zap.NewNop())

	bundle := Bundle{
		Edges: []EdgeInput{{Source: "Acme Corp", Target: "Jane Doe", Relation: "founded by", Confidence: 0.9}},
	}

	// Case C: no live edge exists yet.
	stats, err := s.UpsertBundle(ctx, bundle, "https://example.com/acme")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EdgesCreated)
	assert.Equal(t, 0, stats.EdgesVerified)

	// Case A: identical fact reasserted — verify, don't recreate.
	stats, err = s.UpsertBundle(ctx, bundle, "https://example.com/acme")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EdgesCreated)
	assert.Equal(t, 1, stats.EdgesVerified)

	// Case B: a different fact for the same endpoints closes the old edge.
	changed := Bundle{
		Edges: []EdgeInput{{Source: "Acme Corp", Target: "Jane Doe", Relation: "founded by", Confidence: 0.9, Properties: map[string]any{"role": "co-founder"}}},
	}
	stats, err = s.UpsertBundle(ctx, changed, "https://example.com/acme")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EdgesCreated)
	assert.Equal(t, 1, stats.EdgesInvalidated)

	snap, err := s.SnapshotAt(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, snap.Links, 1)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.5, clampConfidence(0))
	assert.Equal(t, 0.0, clampConfidence(-1))
	assert.Equal(t, 1.0, clampConfidence(2))
	assert.Equal(t, 0.7, clampConfidence(0.7))
}

func TestFindStaleMarkVerifiedInvalidate(t *testing.T) {
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext("bolt://localhost:7687", neo4j.BasicAuth("neo4j", "password", ""))
	if err != nil {
		t.Skipf("neo4j not available, skipping integration test: %v", err)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Skipf("neo4j not reachable, skipping integration test: %v", err)
	}

	client, err := graph.NewClient(ctx, graph.Config{URI: "bolt://localhost:7687", User: "neo4j", Password: "password"}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close(ctx)

	t.Cleanup(func() {
		_, _ = client.ClearAll(ctx)
	})

	fixedNow := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	s := New(client, zap.NewNop())
	s.now = func() time.Time { return fixedNow }

	bundle := Bundle{
		Edges: []EdgeInput{{Source: "Acme Corp", Target: "Jane Doe", Relation: "founded by", Confidence: 0.9}},
	}
	_, err = s.UpsertBundle(ctx, bundle, "https://example.com/acme")
	require.NoError(t, err)

	// Freshly created edge was last verified at fixedNow, so a 7-day
	// threshold does not yet consider it stale.
	stale, err := s.FindStale(ctx, 7)
	require.NoError(t, err)
	assert.NotContains(t, stale, "https://example.com/acme")

	// Move the clock forward past the threshold.
	s.now = func() time.Time { return fixedNow.Add(8 * 24 * time.Hour) }
	stale, err = s.FindStale(ctx, 7)
	require.NoError(t, err)
	assert.Contains(t, stale, "https://example.com/acme")

	n, err := s.MarkVerified(ctx, "https://example.com/acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, err = s.FindStale(ctx, 7)
	require.NoError(t, err)
	assert.NotContains(t, stale, "https://example.com/acme")

	closed, err := s.Invalidate(ctx, "Acme Corp", "founded by", "Jane Doe", s.now())
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = s.Invalidate(ctx, "Acme Corp", "founded by", "Jane Doe", s.now())
	require.NoError(t, err)
	assert.False(t, closed)
}
