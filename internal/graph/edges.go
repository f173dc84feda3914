package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// relationType is the single Neo4j relationship type used for every
// temporal edge; the asserted relation symbol (e.g. FOUNDED_BY) is kept
// as a property instead of a dynamic relationship type so Cypher never
// interpolates caller-controlled strings.
const relationType = "RELATES"

// EdgeRecord is a temporal edge as stored in and read back from the graph.
type EdgeRecord struct {
	Hash              string
	SourceID          string
	TargetID          string
	Relation          string
	Properties        map[string]any
	ValidFrom         time.Time
	ValidTo           *time.Time
	LastVerified      time.Time
	VerificationCount int64
	SourceURL         string
	Confidence        float64
}

func recordToEdge(rec map[string]any) EdgeRecord {
	e := EdgeRecord{
		Hash:     asString(rec["hash"]),
		SourceID: asString(rec["source_id"]),
		TargetID: asString(rec["target_id"]),
		Relation: asString(rec["relation"]),
	}
	if raw, ok := rec["properties"].(string); ok {
		e.Properties = decodeProperties(raw)
	}
	e.ValidFrom = asTime(rec["valid_from"])
	e.LastVerified = asTime(rec["last_verified"])
	if vt := asTimePtr(rec["valid_to"]); vt != nil {
		e.ValidTo = vt
	}
	e.VerificationCount = asInt64(rec["verification_count"])
	e.SourceURL = asString(rec["source_url"])
	e.Confidence = asFloat64(rec["confidence"])
	return e
}

// LiveEdgesBetween returns every currently-asserted edge (valid_to IS NULL)
// for the given (source, relation, target) triple. At most one is expected
// to exist, but callers should not assume the store can never momentarily
// hold more (e.g. concurrent writers outside this single-writer design)
// and should handle a slice defensively.
func (c *Client) LiveEdgesBetween(ctx context.Context, sourceID, relation, targetID string) ([]EdgeRecord, error) {
	query := `
		MATCH (s:Entity {id: $source_id})-[r:` + relationType + ` {relation: $relation}]->(t:Entity {id: $target_id})
		WHERE r.valid_to IS NULL
		RETURN r.hash AS hash, s.id AS source_id, t.id AS target_id, r.relation AS relation,
		       r.properties AS properties, r.valid_from AS valid_from, r.valid_to AS valid_to,
		       r.last_verified AS last_verified, r.verification_count AS verification_count,
		       r.source_url AS source_url, r.confidence AS confidence
	`
	result, err := c.runRead(ctx, query, map[string]any{
		"source_id": sourceID,
		"relation":  relation,
		"target_id": targetID,
	})
	if err != nil {
		return nil, fmt.Errorf("graph: query live edges: %w", err)
	}

	edges := make([]EdgeRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		edges = append(edges, recordToEdge(rec.AsMap()))
	}
	return edges, nil
}

// CreateEdge creates a new live edge.
func (c *Client) CreateEdge(ctx context.Context, e EdgeRecord) error {
	propsJSON, err := canonicalJSON(e.Properties)
	if err != nil {
		return fmt.Errorf("graph: encode edge properties: %w", err)
	}

	query := `
		MATCH (s:Entity {id: $source_id})
		MATCH (t:Entity {id: $target_id})
		CREATE (s)-[r:` + relationType + `]->(t)
		SET r.hash = $hash,
		    r.relation = $relation,
		    r.properties = $properties,
		    r.valid_from = $valid_from,
		    r.valid_to = null,
		    r.last_verified = $last_verified,
		    r.verification_count = 1,
		    r.source_url = $source_url,
		    r.confidence = $confidence
	`
	_, err = c.run(ctx, query, map[string]any{
		"source_id":     e.SourceID,
		"target_id":     e.TargetID,
		"hash":          e.Hash,
		"relation":      e.Relation,
		"properties":    propsJSON,
		"valid_from":    e.ValidFrom,
		"last_verified": e.LastVerified,
		"source_url":    e.SourceURL,
		"confidence":    e.Confidence,
	})
	if err != nil {
		return fmt.Errorf("graph: create edge %s-%s->%s: %w", e.SourceID, e.Relation, e.TargetID, err)
	}
	return nil
}

// CloseEdge sets valid_to on a live edge identified by its content hash.
// History is monotone: valid_to is only ever set once per edge.
func (c *Client) CloseEdge(ctx context.Context, hash string, at time.Time) error {
	query := `
		MATCH ()-[r:` + relationType + ` {hash: $hash}]->()
		WHERE r.valid_to IS NULL
		SET r.valid_to = $at
	`
	_, err := c.run(ctx, query, map[string]any{"hash": hash, "at": at})
	if err != nil {
		return fmt.Errorf("graph: close edge %s: %w", hash, err)
	}
	return nil
}

// TouchEdge implements re-verification of an already-live edge: bump
// last_verified and verification_count, refresh source_url.
func (c *Client) TouchEdge(ctx context.Context, hash string, at time.Time, sourceURL string) error {
	query := `
		MATCH ()-[r:` + relationType + ` {hash: $hash}]->()
		WHERE r.valid_to IS NULL
		SET r.last_verified = $at,
		    r.verification_count = r.verification_count + 1,
		    r.source_url = $source_url
	`
	_, err := c.run(ctx, query, map[string]any{"hash": hash, "at": at, "source_url": sourceURL})
	if err != nil {
		return fmt.Errorf("graph: touch edge %s: %w", hash, err)
	}
	return nil
}

// SnapshotEdges returns every edge live at instant t:
// valid_from <= t AND (valid_to IS NULL OR valid_to > t).
func (c *Client) SnapshotEdges(ctx context.Context, at time.Time) ([]EdgeRecord, error) {
	query := `
		MATCH (s:Entity)-[r:` + relationType + `]->(t:Entity)
		WHERE r.valid_from <= $at AND (r.valid_to IS NULL OR r.valid_to > $at)
		RETURN r.hash AS hash, s.id AS source_id, t.id AS target_id, r.relation AS relation,
		       r.properties AS properties, r.valid_from AS valid_from, r.valid_to AS valid_to,
		       r.last_verified AS last_verified, r.verification_count AS verification_count,
		       r.source_url AS source_url, r.confidence AS confidence
	`
	result, err := c.runRead(ctx, query, map[string]any{"at": at})
	if err != nil {
		return nil, fmt.Errorf("graph: query snapshot: %w", err)
	}
	edges := make([]EdgeRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		edges = append(edges, recordToEdge(rec.AsMap()))
	}
	return edges, nil
}

// EntitiesByIDs fetches entity records for a set of ids, e.g. the
// endpoints reachable from a snapshot's edges.
func (c *Client) EntitiesByIDs(ctx context.Context, ids []string) ([]EntityRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		MATCH (e:Entity)
		WHERE e.id IN $ids
		RETURN e.id AS id, e.label AS label, e.properties AS properties
	`
	result, err := c.runRead(ctx, query, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("graph: query entities: %w", err)
	}
	out := make([]EntityRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		m := rec.AsMap()
		out = append(out, EntityRecord{
			ID:         asString(m["id"]),
			Label:      asString(m["label"]),
			Properties: decodeProperties(asString(m["properties"])),
		})
	}
	return out, nil
}

// FindStaleSourceURLs returns every source_url whose live edges were all
// last verified before the cutoff. A URL is not stale if ANY of its live
// edges are fresh.
func (c *Client) FindStaleSourceURLs(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		MATCH ()-[r:` + relationType + `]->()
		WHERE r.valid_to IS NULL AND r.source_url IS NOT NULL
		WITH r.source_url AS source_url, max(r.last_verified) AS freshest
		WHERE freshest < $cutoff
		RETURN source_url
	`
	result, err := c.runRead(ctx, query, map[string]any{"cutoff": cutoff})
	if err != nil {
		return nil, fmt.Errorf("graph: query stale sources: %w", err)
	}
	urls := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		m := rec.AsMap()
		urls = append(urls, asString(m["source_url"]))
	}
	return urls, nil
}

// MarkVerifiedEdges bumps last_verified and verification_count for every
// live edge carrying the given source_url.
func (c *Client) MarkVerifiedEdges(ctx context.Context, sourceURL string, at time.Time) (int64, error) {
	query := `
		MATCH ()-[r:` + relationType + ` {source_url: $source_url}]->()
		WHERE r.valid_to IS NULL
		SET r.last_verified = $at, r.verification_count = r.verification_count + 1
		RETURN count(r) AS touched
	`
	result, err := c.run(ctx, query, map[string]any{"source_url": sourceURL, "at": at})
	if err != nil {
		return 0, fmt.Errorf("graph: mark verified: %w", err)
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	return asInt64(result.Records[0].AsMap()["touched"]), nil
}

// InvalidateLiveEdge closes the live edge for (source, relation, target),
// if any, and reports whether one was found.
func (c *Client) InvalidateLiveEdge(ctx context.Context, sourceID, relation, targetID string, at time.Time) (bool, error) {
	query := `
		MATCH (s:Entity {id: $source_id})-[r:` + relationType + ` {relation: $relation}]->(t:Entity {id: $target_id})
		WHERE r.valid_to IS NULL
		SET r.valid_to = $at
		RETURN count(r) AS closed
	`
	result, err := c.run(ctx, query, map[string]any{
		"source_id": sourceID,
		"relation":  relation,
		"target_id": targetID,
		"at":        at,
	})
	if err != nil {
		return false, fmt.Errorf("graph: invalidate edge: %w", err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	return asInt64(result.Records[0].AsMap()["closed"]) > 0, nil
}

// ClearAll wipes every node and relationship — an explicitly
// administrative action — and returns the number of nodes removed.
func (c *Client) ClearAll(ctx context.Context) (int64, error) {
	query := `
		MATCH (n)
		WITH count(n) AS total
		CALL { MATCH (m) DETACH DELETE m }
		RETURN total
	`
	result, err := c.run(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("graph: clear all: %w", err)
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	return asInt64(result.Records[0].AsMap()["total"]), nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	if dt, ok := v.(neo4j.Date); ok {
		return dt.Time()
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
