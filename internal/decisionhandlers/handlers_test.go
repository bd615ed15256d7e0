package decisionhandlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litreview/engine/internal/model"
)

func TestGroupByPairTracksMaxConfidence(t *testing.T) {
	hyps := []model.Hypothesis{
		{Source: "A", Target: "B", Confidence: 3, PassedFilter: true},
		{Source: "A", Target: "B", Confidence: 9, PassedFilter: true},
		{Source: "C", Target: "D", Confidence: 5, PassedFilter: true},
	}
	groups := groupByPair(hyps)
	assert.Len(t, groups, 2)
	assert.Equal(t, 9, groups["A→B"].maxConfidence)
	assert.Len(t, groups["A→B"].members, 2)
}

func TestSortedPairsByConfidenceDescending(t *testing.T) {
	groups := groupByPair([]model.Hypothesis{
		{Source: "A", Target: "B", Confidence: 2, PassedFilter: true},
		{Source: "C", Target: "D", Confidence: 9, PassedFilter: true},
	})
	ordered := sortedPairsByConfidence(groups)
	assert.Equal(t, "C", ordered[0].source)
	assert.Equal(t, "A", ordered[1].source)
}

func TestUnionTripleIDsDedupsAndPreservesOrder(t *testing.T) {
	hyps := []model.Hypothesis{
		{TripleIDs: []string{"t1", "t2"}},
		{TripleIDs: []string{"t2", "t3"}},
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, unionTripleIDs(hyps))
}

func TestSubviewForHypothesesKeepsOnlyPathNodesAndEdges(t *testing.T) {
	g := &model.Graph{
		Nodes: []model.Node{{Text: "A"}, {Text: "B"}, {Text: "Z"}},
		Edges: []model.Edge{
			{Subject: "A", Object: "B"},
			{Subject: "A", Object: "Z"},
		},
	}
	hyps := []model.Hypothesis{{Path: []string{"A", "B"}}}
	sub := subviewForHypotheses(g, hyps)
	assert.Len(t, sub.Nodes, 2)
	assert.Len(t, sub.Edges, 1)
	assert.Equal(t, "A", sub.Edges[0].Subject)
}

func TestSubviewForHypothesesNilGraph(t *testing.T) {
	assert.Nil(t, subviewForHypotheses(nil, nil))
}
