package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/model"
)

// fakeEmbedder returns a fixed, pre-registered vector per input text so
// tests can control clustering outcomes deterministically.
type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f *fakeEmbedder) Dimension() int { return 2 }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func TestMergeSemanticClustersNearIdenticalConcepts(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{Text: "gradient boosting", Type: "concept"},
			{Text: "gradient boosted trees", Type: "concept"},
			{Text: "image classification", Type: "concept"},
			{Text: "Transformer", Type: "entity"},
		},
		Edges: []model.Edge{
			{Subject: "gradient boosting", Predicate: "used_for", Object: "image classification", Support: 1},
			{Subject: "gradient boosted trees", Predicate: "used_for", Object: "image classification", Support: 1},
		},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"gradient boosting":      {1.0, 0.01},
		"gradient boosted trees": {0.99, 0.02},
		"image classification":   {0.0, 1.0},
	}}

	merged, summary, err := MergeSemantic(context.Background(), nil, embedder, g, 0.85)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ConceptNodesFiltered)
	assert.Equal(t, 2, summary.ClustersFormed)

	var boosting *model.Node
	for i := range merged.Nodes {
		if merged.Nodes[i].Text == "gradient boosting" {
			boosting = &merged.Nodes[i]
		}
	}
	require.NotNil(t, boosting, "shorter text should win as canonical")
	assert.Contains(t, boosting.Aliases, "gradient boosted trees")

	// entity node passes through untouched
	var foundEntity bool
	for _, n := range merged.Nodes {
		if n.Text == "Transformer" {
			foundEntity = true
		}
	}
	assert.True(t, foundEntity)

	// both original edges collapse onto the canonical subject
	require.Len(t, merged.Edges, 1)
	assert.Equal(t, "gradient boosting", merged.Edges[0].Subject)
	assert.Equal(t, 2, merged.Edges[0].Support)
}

func TestMergeSemanticNoConceptsReturnsGraphUnchanged(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{{Text: "Transformer", Type: "entity"}},
		Edges: nil,
	}
	merged, summary, err := MergeSemantic(context.Background(), nil, &fakeEmbedder{}, g, 0.85)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ConceptNodesFiltered)
	assert.Len(t, merged.Nodes, 1)
}

func TestIsConceptEligibleFiltersPureNumbersAndURLs(t *testing.T) {
	assert.False(t, isConceptEligible(model.Node{Text: "123", Type: "concept"}))
	assert.False(t, isConceptEligible(model.Node{Text: "http://example.com", Type: "concept"}))
	assert.False(t, isConceptEligible(model.Node{Text: "a", Type: "concept"}))
	assert.True(t, isConceptEligible(model.Node{Text: "gene editing", Type: "concept"}))
}
