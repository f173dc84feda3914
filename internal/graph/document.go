package graph

import (
	"context"
	"fmt"
	"time"
)

// DocumentState is keyed by source_url.
type DocumentState struct {
	SourceURL   string
	ContentHash string
	LastChecked time.Time
}

// GetDocumentState returns the most recently observed content hash for a
// URL, or ok=false if the document has never been scraped.
func (c *Client) GetDocumentState(ctx context.Context, sourceURL string) (hash string, ok bool, err error) {
	query := `
		MATCH (d:Document {source_url: $source_url})
		RETURN d.content_hash AS content_hash
	`
	result, err := c.runRead(ctx, query, map[string]any{"source_url": sourceURL})
	if err != nil {
		return "", false, fmt.Errorf("graph: get document state: %w", err)
	}
	if len(result.Records) == 0 {
		return "", false, nil
	}
	return asString(result.Records[0].AsMap()["content_hash"]), true, nil
}

// SetDocumentState inserts or updates the document's content hash and
// last_checked timestamp.
func (c *Client) SetDocumentState(ctx context.Context, sourceURL, contentHash string) error {
	query := `
		MERGE (d:Document {source_url: $source_url})
		SET d.content_hash = $content_hash, d.last_checked = $last_checked
	`
	_, err := c.run(ctx, query, map[string]any{
		"source_url":   sourceURL,
		"content_hash": contentHash,
		"last_checked": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("graph: set document state: %w", err)
	}
	return nil
}
