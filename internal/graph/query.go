package graph

import (
	"context"
	"fmt"
	"time"
)

// RelationMatch is one row of a pattern-matched relationship, shaped for
// internal/query's natural-language answer formatting.
type RelationMatch struct {
	Source     string
	Relation   string
	Target     string
	Confidence float64
	SourceURL  string
}

// MatchOptions parameterizes the handful of relationship-shape queries
// the query engine needs. Every string value here travels as a bound
// parameter — the fixed RELATES relationship type (graph/edges.go)
// means relation matching is always a property comparison, never a
// dynamic type name, so no caller text is interpolated into Cypher.
// Limit is formatted into the query as an integer.
type MatchOptions struct {
	RelationContains   []string
	EntityContains     []string
	ClosedOnly         bool
	OrderByValidToDesc bool
	Limit              int
	// AsOf, when set, matches the graph as it stood at that instant
	// instead of the live snapshot: valid_from <= AsOf AND (valid_to IS
	// NULL OR valid_to > AsOf).
	AsOf *time.Time
}

// MatchRelations runs one parameterized pattern query and returns matching
// live (or closed, for ClosedOnly, or as-of-time, for AsOf) edges with
// their endpoint names, alongside the emitted Cypher pattern.
func (c *Client) MatchRelations(ctx context.Context, opts MatchOptions) ([]RelationMatch, string, error) {
	validityClause := "r.valid_to IS NULL"
	params := map[string]any{}

	switch {
	case opts.AsOf != nil:
		validityClause = "r.valid_from <= $as_of AND (r.valid_to IS NULL OR r.valid_to > $as_of)"
		params["as_of"] = *opts.AsOf
	case opts.ClosedOnly:
		validityClause = "r.valid_to IS NOT NULL"
	}

	query := "MATCH (source:Entity)-[r:" + relationType + "]->(target:Entity) WHERE " + validityClause

	if len(opts.RelationContains) > 0 {
		query += " AND any(token IN $relation_tokens WHERE toUpper(r.relation) CONTAINS token)"
		params["relation_tokens"] = opts.RelationContains
	}
	if len(opts.EntityContains) > 0 {
		query += " AND any(name IN $entity_names WHERE toLower(source.id) CONTAINS toLower(name) OR toLower(target.id) CONTAINS toLower(name))"
		params["entity_names"] = opts.EntityContains
	}

	query += " RETURN source.id AS source, r.relation AS relation, target.id AS target, r.confidence AS confidence, r.source_url AS source_url"
	if opts.OrderByValidToDesc {
		query += " ORDER BY r.valid_to DESC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	result, err := c.runRead(ctx, query, params)
	if err != nil {
		return nil, query, fmt.Errorf("graph: match relations: %w", err)
	}

	matches := make([]RelationMatch, 0, len(result.Records))
	for _, rec := range result.Records {
		m := rec.AsMap()
		matches = append(matches, RelationMatch{
			Source:     asString(m["source"]),
			Relation:   asString(m["relation"]),
			Target:     asString(m["target"]),
			Confidence: asFloat64(m["confidence"]),
			SourceURL:  asString(m["source_url"]),
		})
	}
	return matches, query, nil
}
