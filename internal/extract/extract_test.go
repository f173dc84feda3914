package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStoreBundleDropsIncompleteFacts(t *testing.T) {
	fb := factBundle{Facts: []Fact{
		{Source: "Acme Corp", Relation: "founded-by", Target: "Jane Doe", Confidence: 0.9},
		{Source: "", Relation: "ceo_of", Target: "Acme Corp", Confidence: 0.5},
		{Source: "Acme Corp", Relation: "", Target: "Jane Doe", Confidence: 0.5},
	}}

	bundle := toStoreBundle(fb)

	assert.Len(t, bundle.Edges, 1)
	assert.Equal(t, "FOUNDED_BY", bundle.Edges[0].Relation)
	assert.Len(t, bundle.Nodes, 2)
}

func TestToStoreBundleClampsConfidence(t *testing.T) {
	fb := factBundle{Facts: []Fact{
		{Source: "A", Relation: "x", Target: "B", Confidence: 5},
		{Source: "C", Relation: "y", Target: "D", Confidence: -1},
		{Source: "E", Relation: "z", Target: "F", Confidence: 0},
	}}

	bundle := toStoreBundle(fb)

	assert.Equal(t, 1.0, bundle.Edges[0].Confidence)
	assert.Equal(t, 0.0, bundle.Edges[1].Confidence)
	assert.Equal(t, 0.5, bundle.Edges[2].Confidence)
}

func TestToStoreBundleDedupesEntities(t *testing.T) {
	fb := factBundle{Facts: []Fact{
		{Source: "A", Relation: "x", Target: "B", Confidence: 0.8},
		{Source: "A", Relation: "y", Target: "C", Confidence: 0.8},
	}}

	bundle := toStoreBundle(fb)

	assert.Len(t, bundle.Nodes, 3)
}

func TestToStoreBundleUsesNodeLabels(t *testing.T) {
	fb := factBundle{
		Nodes: []Node{{ID: "Tesla", Label: "Company"}, {ID: "Elon Musk", Label: "Person"}},
		Facts: []Fact{
			{Source: "Elon Musk", Relation: "ceo_of", Target: "Tesla", Confidence: 0.9, Properties: map[string]any{"role": "CEO"}},
		},
	}

	bundle := toStoreBundle(fb)

	require.Len(t, bundle.Nodes, 2)
	byID := map[string]string{}
	for _, n := range bundle.Nodes {
		byID[n.ID] = n.Label
	}
	assert.Equal(t, "Company", byID["Tesla"])
	assert.Equal(t, "Person", byID["Elon Musk"])
	assert.Equal(t, map[string]any{"role": "CEO"}, bundle.Edges[0].Properties)
}

func TestToStoreBundleSynthesizesMissingNode(t *testing.T) {
	fb := factBundle{
		Nodes: []Node{{ID: "Tesla", Label: "Company"}},
		Facts: []Fact{
			{Source: "Tesla", Relation: "founded_by", Target: "Elon Musk", Confidence: 0.9},
		},
	}

	bundle := toStoreBundle(fb)

	require.Len(t, bundle.Nodes, 2)
	byID := map[string]string{}
	for _, n := range bundle.Nodes {
		byID[n.ID] = n.Label
	}
	assert.Equal(t, "Company", byID["Tesla"])
	assert.Equal(t, "Entity", byID["Elon Musk"])
}
