// Package store implements the bitemporal edge engine itself. It is
// the leaf of the system — it depends only on internal/graph, which
// in turn depends only on the Neo4j driver.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelkg/sentinel/internal/graph"
)

// NodeInput is one entity in a bundle.
type NodeInput struct {
	ID         string
	Label      string
	Properties map[string]any
}

// EdgeInput is one proposed edge in a bundle.
type EdgeInput struct {
	Source     string
	Target     string
	Relation   string
	Properties map[string]any
	Confidence float64
}

// Bundle is a batch of entities and proposed edges applied as one
// logical assertion at a single instant.
type Bundle struct {
	Nodes []NodeInput
	Edges []EdgeInput
}

// Stats summarizes what UpsertBundle did.
type Stats struct {
	NodesMerged      int
	EdgesCreated     int
	EdgesVerified    int
	EdgesInvalidated int
}

// Node is a snapshot entity, shaped for the HTTP facade's visualization format.
type Node struct {
	ID     string         `json:"id"`
	Label  string         `json:"label"`
	Name   string         `json:"name"`
	Weight int            `json:"weight"`
	Props  map[string]any `json:"properties,omitempty"`
}

// Link is a snapshot edge.
type Link struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Relation   string     `json:"relation"`
	Confidence float64    `json:"confidence"`
	SourceURL  string     `json:"source_url"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to,omitempty"`
}

// Snapshot is the return shape of SnapshotAt.
type Snapshot struct {
	Nodes []Node         `json:"nodes"`
	Links []Link         `json:"links"`
	Meta  map[string]any `json:"meta"`
}

// Store is the temporal graph store's public surface.
type Store struct {
	graph  *graph.Client
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Store over a connected graph client.
func New(client *graph.Client, logger *zap.Logger) *Store {
	return &Store{graph: client, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertBundle is the heart of the engine: MERGE entities, then for
// each proposed edge in arrival order, classify Case A/B/C against the
// live edge(s) between its endpoints and apply the diff.
func (s *Store) UpsertBundle(ctx context.Context, bundle Bundle, sourceURL string) (Stats, error) {
	now := s.now()
	var stats Stats

	merged := make(map[string]bool, len(bundle.Nodes))
	for _, n := range bundle.Nodes {
		if err := s.graph.MergeEntity(ctx, graph.EntityInput{ID: n.ID, Label: n.Label, Properties: n.Properties}); err != nil {
			return stats, fmt.Errorf("store: upsert bundle: %w", err)
		}
		stats.NodesMerged++
		merged[n.ID] = true
	}

	for _, e := range bundle.Edges {
		relation := NormalizeRelation(e.Relation)
		if e.Source == "" || e.Target == "" || relation == "" {
			continue
		}

		// An edge endpoint already merged above keeps the label the bundle
		// gave it; only endpoints missing from bundle.Nodes entirely are
		// synthesized here with a generic label.
		if !merged[e.Source] {
			if err := s.ensureEntity(ctx, e.Source); err != nil {
				return stats, err
			}
		}
		if !merged[e.Target] {
			if err := s.ensureEntity(ctx, e.Target); err != nil {
				return stats, err
			}
		}

		confidence := clampConfidence(e.Confidence)
		hash := EdgeHash(e.Source, relation, e.Target, e.Properties)

		live, err := s.graph.LiveEdgesBetween(ctx, e.Source, relation, e.Target)
		if err != nil {
			return stats, fmt.Errorf("store: upsert bundle: %w", err)
		}

		matched := false
		for _, l := range live {
			if l.Hash == hash {
				matched = true
				break
			}
		}

		switch {
		case matched:
			// Case A: exact match already live — verify only.
			if err := s.graph.TouchEdge(ctx, hash, now, sourceURL); err != nil {
				return stats, fmt.Errorf("store: upsert bundle: %w", err)
			}
			stats.EdgesVerified++

		case len(live) > 0:
			// Case B: a different live edge occupies these endpoints —
			// close it, then create the new one.
			for _, l := range live {
				if err := s.graph.CloseEdge(ctx, l.Hash, now); err != nil {
					return stats, fmt.Errorf("store: upsert bundle: %w", err)
				}
				stats.EdgesInvalidated++
			}
			if err := s.graph.CreateEdge(ctx, graph.EdgeRecord{
				Hash: hash, SourceID: e.Source, TargetID: e.Target, Relation: relation,
				Properties: e.Properties, ValidFrom: now, LastVerified: now,
				SourceURL: sourceURL, Confidence: confidence,
			}); err != nil {
				return stats, fmt.Errorf("store: upsert bundle: %w", err)
			}
			stats.EdgesCreated++

		default:
			// Case C: no live edge between these endpoints — create.
			if err := s.graph.CreateEdge(ctx, graph.EdgeRecord{
				Hash: hash, SourceID: e.Source, TargetID: e.Target, Relation: relation,
				Properties: e.Properties, ValidFrom: now, LastVerified: now,
				SourceURL: sourceURL, Confidence: confidence,
			}); err != nil {
				return stats, fmt.Errorf("store: upsert bundle: %w", err)
			}
			stats.EdgesCreated++
		}
	}

	return stats, nil
}

func (s *Store) ensureEntity(ctx context.Context, id string) error {
	return s.graph.MergeEntity(ctx, graph.EntityInput{
		ID:         id,
		Label:      "Entity",
		Properties: map[string]any{"name": id},
	})
}

func clampConfidence(c float64) float64 {
	if c == 0 {
		return 0.5
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// SnapshotAt returns the graph as it stood at t, defaulting to now.
func (s *Store) SnapshotAt(ctx context.Context, t *time.Time) (Snapshot, error) {
	at := s.now()
	if t != nil {
		at = *t
	}

	edges, err := s.graph.SnapshotEdges(ctx, at)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: snapshot at %s: %w", at, err)
	}

	degree := map[string]int{}
	seen := map[string]bool{}
	var ids []string
	links := make([]Link, 0, len(edges))
	for _, e := range edges {
		degree[e.SourceID]++
		degree[e.TargetID]++
		for _, id := range []string{e.SourceID, e.TargetID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		links = append(links, Link{
			Source: e.SourceID, Target: e.TargetID, Relation: e.Relation,
			Confidence: e.Confidence, SourceURL: e.SourceURL,
			ValidFrom: e.ValidFrom, ValidTo: e.ValidTo,
		})
	}

	entities, err := s.graph.EntitiesByIDs(ctx, ids)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: snapshot at %s: %w", at, err)
	}

	nodes := make([]Node, 0, len(entities))
	for _, ent := range entities {
		name := ent.ID
		if n, ok := ent.Properties["name"].(string); ok && n != "" {
			name = n
		}
		nodes = append(nodes, Node{
			ID: ent.ID, Label: ent.Label, Name: name,
			Weight: degree[ent.ID], Props: ent.Properties,
		})
	}

	return Snapshot{
		Nodes: nodes,
		Links: links,
		Meta: map[string]any{
			"timestamp":  at,
			"node_count": len(nodes),
			"link_count": len(links),
		},
	}, nil
}

// FindStale returns the distinct source URLs whose live edges were all
// last verified before now-daysThreshold.
func (s *Store) FindStale(ctx context.Context, daysThreshold int) ([]string, error) {
	cutoff := s.now().Add(-time.Duration(daysThreshold) * 24 * time.Hour)
	urls, err := s.graph.FindStaleSourceURLs(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: find stale: %w", err)
	}
	return urls, nil
}

// MarkVerified touches every live edge carrying source_url and returns
// how many were updated.
func (s *Store) MarkVerified(ctx context.Context, sourceURL string) (int64, error) {
	n, err := s.graph.MarkVerifiedEdges(ctx, sourceURL, s.now())
	if err != nil {
		return 0, fmt.Errorf("store: mark verified: %w", err)
	}
	return n, nil
}

// GetDocumentState returns the content hash last observed for a URL.
func (s *Store) GetDocumentState(ctx context.Context, sourceURL string) (string, bool, error) {
	hash, ok, err := s.graph.GetDocumentState(ctx, sourceURL)
	if err != nil {
		return "", false, fmt.Errorf("store: get document state: %w", err)
	}
	return hash, ok, nil
}

// SetDocumentState records the most recent content hash for a URL.
func (s *Store) SetDocumentState(ctx context.Context, sourceURL, contentHash string) error {
	if err := s.graph.SetDocumentState(ctx, sourceURL, contentHash); err != nil {
		return fmt.Errorf("store: set document state: %w", err)
	}
	return nil
}

// Invalidate closes the live edge for (source, relation, target) at the
// given time and reports whether one existed.
func (s *Store) Invalidate(ctx context.Context, source, relation, target string, at time.Time) (bool, error) {
	closed, err := s.graph.InvalidateLiveEdge(ctx, source, NormalizeRelation(relation), target, at)
	if err != nil {
		return false, fmt.Errorf("store: invalidate: %w", err)
	}
	return closed, nil
}

// Counts returns cheap graph-wide aggregates for the HTTP facade's stats
// endpoint.
func (s *Store) Counts(ctx context.Context) (graph.Counts, error) {
	counts, err := s.graph.Counts(ctx)
	if err != nil {
		return graph.Counts{}, fmt.Errorf("store: counts: %w", err)
	}
	return counts, nil
}

// ClearAll wipes the entire graph — an administrative action, not part
// of normal operation.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.graph.ClearAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: clear all: %w", err)
	}
	return n, nil
}
