package graph

import (
	"context"
	"encoding/json"
	"fmt"
)

// EntityInput is a caller-supplied entity to MERGE into the graph.
type EntityInput struct {
	ID         string
	Label      string
	Properties map[string]any
}

// EntityRecord is an entity as stored in and read back from the graph.
type EntityRecord struct {
	ID         string
	Label      string
	Properties map[string]any
}

// MergeEntity unions property maps on write: new values overwrite
// matching keys, last-writer-wins.
func (c *Client) MergeEntity(ctx context.Context, in EntityInput) error {
	label := in.Label
	if label == "" {
		label = "Entity"
	}
	propsJSON, err := canonicalJSON(in.Properties)
	if err != nil {
		return fmt.Errorf("graph: encode entity properties: %w", err)
	}

	// Property maps are stored as canonical JSON text (Neo4j properties can't
	// hold an arbitrary nested map natively); APOC does the last-writer-wins
	// union server-side in the same statement.
	query := `
		MERGE (e:Entity {id: $id})
		ON CREATE SET e.label = $label, e.properties = $properties
		ON MATCH SET e.label = $label,
		             e.properties = apoc.convert.toJson(apoc.map.merge(
		                 apoc.convert.fromJsonMap(e.properties),
		                 apoc.convert.fromJsonMap($properties)
		             ))
	`
	_, err = c.run(ctx, query, map[string]any{
		"id":         in.ID,
		"label":      label,
		"properties": propsJSON,
	})
	if err != nil {
		return fmt.Errorf("graph: merge entity %q: %w", in.ID, err)
	}
	return nil
}

// canonicalJSON marshals a property map deterministically. encoding/json
// sorts map keys, which is exactly the canonicalization the edge content
// hash needs.
func canonicalJSON(properties map[string]any) (string, error) {
	if properties == nil {
		properties = map[string]any{}
	}
	b, err := json.Marshal(properties)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeProperties(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}
