// Package query converts a natural-language question into a graph
// lookup and a formatted answer, using heuristic question
// classification and parameterized Cypher instead of string
// interpolation.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sentinelkg/sentinel/internal/graph"
)

// Answer is the result of answering one question.
type Answer struct {
	Text    string                `json:"answer"`
	Results []graph.RelationMatch `json:"results"`
	Path    []string              `json:"path,omitempty"`
	Query   string                `json:"query,omitempty"`
}

// Engine answers natural-language questions against the live graph.
type Engine struct {
	graph *graph.Client
}

func New(client *graph.Client) *Engine {
	return &Engine{graph: client}
}

var stopWords = map[string]bool{
	"what": true, "who": true, "when": true, "where": true, "why": true, "how": true,
	"is": true, "are": true, "was": true, "were": true, "the": true, "a": true, "an": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true, "with": true,
	"about": true, "does": true, "do": true, "did": true, "can": true, "could": true,
	"would": true, "should": true, "founded": true, "created": true, "made": true,
	"built": true, "developed": true, "invented": true,
}

var cleanWord = regexp.MustCompile(`[^\w\s]`)

// extractEntities applies a capitalization heuristic: runs of
// capitalized, non-stopword tokens are candidate entity names.
func extractEntities(question string) []string {
	var entities []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			entities = append(entities, strings.Join(current, " "))
			current = nil
		}
	}

	for _, word := range strings.Fields(question) {
		clean := cleanWord.ReplaceAllString(word, "")
		if clean == "" {
			continue
		}
		isCapitalized := clean == strings.ToUpper(clean) || (clean[:1] == strings.ToUpper(clean[:1]))
		if isCapitalized && !stopWords[strings.ToLower(clean)] {
			current = append(current, clean)
		} else {
			flush()
		}
	}
	flush()
	return entities
}

// Ask classifies the question, runs the matching parameterized query
// against the live graph (or the as-of-time snapshot when at is given),
// and formats a natural-language answer. The "what changed" question
// always lists closed edges, newest valid_to first, and ignores at.
func (e *Engine) Ask(ctx context.Context, question string, at *time.Time) (Answer, error) {
	lower := strings.ToLower(question)
	entities := extractEntities(question)
	opts := classify(lower, entities, at)

	matches, cypher, err := e.graph.MatchRelations(ctx, opts)
	if err != nil {
		return Answer{}, fmt.Errorf("query: ask: %w", err)
	}
	if len(matches) == 0 {
		return Answer{Text: "No results found.", Results: nil, Query: cypher}, nil
	}

	first := matches[0]
	return Answer{
		Text:    formatAnswer(lower, matches),
		Results: matches,
		Path:    []string{first.Source, first.Target},
		Query:   cypher,
	}, nil
}

func classify(lower string, entities []string, at *time.Time) graph.MatchOptions {
	switch {
	case strings.Contains(lower, "who") && (strings.Contains(lower, "founded") || strings.Contains(lower, "created") || strings.Contains(lower, "started")):
		return graph.MatchOptions{RelationContains: []string{"FOUND", "CREAT", "START"}, EntityContains: entities, Limit: 1, AsOf: at}

	case strings.Contains(lower, "how much") || strings.Contains(lower, "cost") || strings.Contains(lower, "price"):
		return graph.MatchOptions{RelationContains: []string{"COST", "PRICE"}, Limit: 1, AsOf: at}

	case strings.Contains(lower, "who") && (strings.Contains(lower, "ceo") || strings.Contains(lower, "founder")):
		return graph.MatchOptions{RelationContains: []string{"CEO", "FOUND"}, Limit: 1, AsOf: at}

	case strings.Contains(lower, "what") && strings.Contains(lower, "changed"):
		return graph.MatchOptions{ClosedOnly: true, OrderByValidToDesc: true, Limit: 5}

	case len(entities) > 0 && (strings.Contains(lower, "what") || strings.Contains(lower, "tell") || strings.Contains(lower, "about")):
		return graph.MatchOptions{EntityContains: entities, Limit: 5, AsOf: at}

	default:
		return graph.MatchOptions{Limit: 5, AsOf: at}
	}
}

func formatAnswer(lower string, matches []graph.RelationMatch) string {
	first := matches[0]
	relationClean := strings.ToLower(strings.ReplaceAll(first.Relation, "_", " "))

	switch {
	case strings.Contains(lower, "how much") || strings.Contains(lower, "cost") || strings.Contains(lower, "price"):
		return fmt.Sprintf("%s costs %s.", first.Source, first.Target)

	case strings.Contains(lower, "who") && (strings.Contains(lower, "ceo") || strings.Contains(lower, "founder") || strings.Contains(lower, "founded")):
		relationClean = strings.TrimSuffix(relationClean, " by")
		return fmt.Sprintf("%s %s %s.", first.Target, relationClean, first.Source)

	case strings.Contains(lower, "what") && strings.Contains(lower, "changed"):
		var lines []string
		limit := len(matches)
		if limit > 3 {
			limit = 3
		}
		for _, m := range matches[:limit] {
			rel := strings.ToLower(strings.ReplaceAll(m.Relation, "_", " "))
			lines = append(lines, fmt.Sprintf("- %s %s %s", m.Source, rel, m.Target))
		}
		return "Recent changes:\n" + strings.Join(lines, "\n")

	default:
		return fmt.Sprintf("%s %s %s.", first.Source, relationClean, first.Target)
	}
}
