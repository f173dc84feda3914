// Package extract turns scraped document text into a proposed fact
// bundle via an LLM. It degrades to an empty bundle plus a logged
// warning rather than ever failing the caller outright — a bad
// extraction should never crash the healing loop.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sentinelkg/sentinel/internal/store"
)

// Fact is one entity-relationship triple as proposed by the model,
// before normalization.
type Fact struct {
	Source     string         `json:"source"`
	Relation   string         `json:"relation"`
	Target     string         `json:"target"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Node is one entity as proposed by the model, carrying the domain
// label ("Company", "Person", ...) that the edge list alone can't convey.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const systemPrompt = `You extract factual entity relationships from web page text.
Return only concrete, verifiable relationships stated in the text — no speculation.
List every distinct entity once in "nodes" with its id and a domain label
(e.g. "Company", "Person", "Product") — fall back to "Entity" only when no
more specific label applies. Each fact in "facts" has a source entity, a
relation (a short verb phrase, e.g. "FOUNDED_BY", "CEO_OF", "ACQUIRED"), a
target entity, a confidence between 0 and 1, and optional properties
(e.g. {"role": "co-founder"}) that distinguish this version of the
relationship from others between the same entities.`

const extractionSchemaName = "fact_bundle"

var extractionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"label": {"type": "string"}
				},
				"required": ["id", "label"]
			}
		},
		"facts": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"source": {"type": "string"},
					"relation": {"type": "string"},
					"target": {"type": "string"},
					"confidence": {"type": "number"},
					"properties": {"type": "object"}
				},
				"required": ["source", "relation", "target"]
			}
		}
	},
	"required": ["nodes", "facts"]
}`)

type factBundle struct {
	Nodes []Node `json:"nodes"`
	Facts []Fact `json:"facts"`
}

// Extractor wraps an OpenAI-compatible chat completion client.
type Extractor struct {
	client  *openai.Client
	model   string
	logger  *zap.Logger
	retries int
}

// Config carries model settings without importing internal/config.
type Config struct {
	Model   string
	BaseURL string
}

// New builds an Extractor. apiKey may be empty in local/dev setups that
// point BaseURL at a self-hosted OpenAI-compatible server.
func New(apiKey string, cfg Config, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Extractor{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		logger:  logger,
		retries: 2,
	}
}

// Extract proposes a fact bundle from document text. On any failure —
// API error, malformed JSON, schema mismatch — after exhausting retries
// it logs a warning and returns an empty, non-nil bundle rather than
// an error.
func (e *Extractor) Extract(ctx context.Context, sourceURL, text string) store.Bundle {
	var lastErr error
	for attempt := 1; attempt <= e.retries+1; attempt++ {
		bundle, err := e.attempt(ctx, text)
		if err == nil {
			return toStoreBundle(bundle)
		}
		lastErr = err
		e.logger.Warn("extraction attempt failed", zap.String("source_url", sourceURL), zap.Int("attempt", attempt), zap.Error(err))
	}
	e.logger.Warn("extraction exhausted retries, degrading to empty bundle", zap.String("source_url", sourceURL), zap.Error(lastErr))
	return store.Bundle{}
}

func (e *Extractor) attempt(ctx context.Context, text string) (factBundle, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   extractionSchemaName,
				Schema: extractionSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return factBundle{}, fmt.Errorf("extract: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return factBundle{}, fmt.Errorf("extract: no choices returned")
	}

	var bundle factBundle
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &bundle); err != nil {
		return factBundle{}, fmt.Errorf("extract: malformed schema response: %w", err)
	}
	return bundle, nil
}

// toStoreBundle normalizes raw facts into a store.Bundle: entities the
// model listed explicitly in nodes[] keep their domain label; an edge
// endpoint missing from nodes[] is synthesized with a generic label.
// Facts missing source/relation/target are dropped, and confidence is
// clamped into [0,1].
func toStoreBundle(fb factBundle) store.Bundle {
	seen := map[string]bool{}
	var nodes []store.NodeInput
	var edges []store.EdgeInput

	for _, n := range fb.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" || seen[id] {
			continue
		}
		label := strings.TrimSpace(n.Label)
		if label == "" {
			label = "Entity"
		}
		seen[id] = true
		nodes = append(nodes, store.NodeInput{ID: id, Label: label, Properties: map[string]any{"name": id}})
	}

	addMissingNode := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		nodes = append(nodes, store.NodeInput{ID: id, Label: "Entity", Properties: map[string]any{"name": id}})
	}

	for _, f := range fb.Facts {
		source := strings.TrimSpace(f.Source)
		target := strings.TrimSpace(f.Target)
		relation := strings.TrimSpace(f.Relation)
		if source == "" || target == "" || relation == "" {
			continue
		}
		addMissingNode(source)
		addMissingNode(target)
		edges = append(edges, store.EdgeInput{
			Source:     source,
			Target:     target,
			Relation:   store.NormalizeRelation(relation),
			Confidence: clamp01(f.Confidence),
			Properties: f.Properties,
		})
	}

	return store.Bundle{Nodes: nodes, Edges: edges}
}

func clamp01(c float64) float64 {
	switch {
	case c == 0:
		return 0.5
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
