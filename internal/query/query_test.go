package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelkg/sentinel/internal/graph"
)

func TestExtractEntities(t *testing.T) {
	entities := extractEntities("Who founded Acme Corp?")
	assert.Equal(t, []string{"Acme Corp"}, entities)
}

func TestExtractEntitiesIgnoresStopwords(t *testing.T) {
	entities := extractEntities("What is the price of Widget Inc")
	assert.Equal(t, []string{"Widget Inc"}, entities)
}

func TestClassifyFounderQuestion(t *testing.T) {
	opts := classify("who founded acme corp", []string{"Acme Corp"}, nil)
	assert.Contains(t, opts.RelationContains, "FOUND")
	assert.Equal(t, 1, opts.Limit)
}

func TestClassifyChangedQuestion(t *testing.T) {
	opts := classify("what changed recently", nil, nil)
	assert.True(t, opts.ClosedOnly)
	assert.True(t, opts.OrderByValidToDesc)
}

func TestClassifyPassesThroughAsOf(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := classify("who founded acme corp", []string{"Acme Corp"}, &at)
	require.NotNil(t, opts.AsOf)
	assert.Equal(t, at, *opts.AsOf)
}

func TestFormatAnswerFounder(t *testing.T) {
	matches := []graph.RelationMatch{{Source: "Acme Corp", Relation: "FOUNDED_BY", Target: "Jane Doe"}}
	answer := formatAnswer("who founded acme corp", matches)
	assert.Equal(t, "Jane Doe founded Acme Corp.", answer)
}

func TestFormatAnswerDefault(t *testing.T) {
	matches := []graph.RelationMatch{{Source: "Acme Corp", Relation: "ACQUIRED", Target: "Widget Inc"}}
	answer := formatAnswer("tell me about acme corp", matches)
	assert.Equal(t, "Acme Corp acquired Widget Inc.", answer)
}
