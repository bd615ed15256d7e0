package pathreasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

func sampleGraph() *model.Graph {
	return &model.Graph{
		Nodes: []model.Node{
			{Text: "A", Type: "concept"},
			{Text: "B", Type: "concept"},
			{Text: "C", Type: "concept"},
			{Text: "M", Type: "metadata"},
		},
		Edges: []model.Edge{
			{Subject: "A", Predicate: "activates", Object: "B", Support: 3},
			{Subject: "B", Predicate: "inhibits", Object: "C", Support: 5},
			{Subject: "A", Predicate: "relates_to", Object: "M", Support: 1},
		},
	}
}

func TestRunExploreBuildsWeakestLinkHypothesis(t *testing.T) {
	hyps := Run(sampleGraph(), Options{Mode: "explore"})
	require.Len(t, hyps, 1)
	h := hyps[0]
	assert.Equal(t, "A", h.Source)
	assert.Equal(t, "C", h.Target)
	assert.Equal(t, []string{"A", "B", "C"}, h.Path)
	assert.Equal(t, 3, h.Confidence) // min(3, 5)
	assert.Contains(t, h.Explanation, "activates")
}

func TestRunUnionsTripleAndSourceIDsAlongPath(t *testing.T) {
	g := &model.Graph{
		Nodes: []model.Node{{Text: "A", Type: "concept"}, {Text: "B", Type: "concept"}, {Text: "C", Type: "concept"}},
		Edges: []model.Edge{
			{Subject: "A", Predicate: "activates", Object: "B", Support: 3, TripleIDs: []string{"t1"}, SourceIDs: []string{"s1"}, BlockIDs: []string{"b1"}},
			{Subject: "B", Predicate: "inhibits", Object: "C", Support: 5, TripleIDs: []string{"t2"}, SourceIDs: []string{"s1", "s2"}, BlockIDs: []string{"b2"}},
		},
	}
	hyps := Run(g, Options{Mode: "explore"})
	require.Len(t, hyps, 1)
	h := hyps[0]
	assert.ElementsMatch(t, []string{"t1", "t2"}, h.TripleIDs)
	assert.ElementsMatch(t, []string{"s1", "s2"}, h.SourceIDs)
	assert.ElementsMatch(t, []string{"b1", "b2"}, h.BlockIDs)
}

func TestRunRejectsDirectEdgeNovelty(t *testing.T) {
	g := sampleGraph()
	g.Edges = append(g.Edges, model.Edge{Subject: "A", Predicate: "causes", Object: "C", Support: 9})
	hyps := Run(g, Options{Mode: "explore"})
	assert.Empty(t, hyps)
}

func TestRunRejectsMetadataNode(t *testing.T) {
	g := &model.Graph{
		Nodes: []model.Node{{Text: "A"}, {Text: "M", Type: "metadata"}, {Text: "C"}},
		Edges: []model.Edge{
			{Subject: "A", Predicate: "p", Object: "M", Support: 1},
			{Subject: "M", Predicate: "p", Object: "C", Support: 1},
		},
	}
	hyps := Run(g, Options{Mode: "explore"})
	assert.Empty(t, hyps)
}

func TestRunQueryModeFiltersBySeed(t *testing.T) {
	hyps := Run(sampleGraph(), Options{Mode: "query", Seeds: []string{"Z"}})
	assert.Empty(t, hyps)

	hyps = Run(sampleGraph(), Options{Mode: "query", Seeds: []string{"A"}})
	require.Len(t, hyps, 1)
}

func TestFilterHubSuppression(t *testing.T) {
	g := sampleGraph()
	h := model.Hypothesis{Source: "A", Target: "C", Path: []string{"A", "B", "C"}, Predicates: []string{"activates"}, Confidence: 3}
	ctx := NewFilterContext(g, config.PathFilterConfig{HubDegreeThreshold: 1}, nil)
	out := Filter([]model.Hypothesis{h}, ctx)
	assert.False(t, out[0].PassedFilter)
	assert.Contains(t, out[0].FilterReason, "hub_suppression")
}

func TestFilterEvidenceThresholdMarksPromising(t *testing.T) {
	g := sampleGraph()
	h := model.Hypothesis{Source: "A", Target: "C", Path: []string{"A", "B", "C"}, Predicates: []string{"activates"}, Confidence: 1}
	ctx := NewFilterContext(g, config.PathFilterConfig{HubDegreeThreshold: 50, MinConfidence: 2}, nil)
	out := Filter([]model.Hypothesis{h}, ctx)
	assert.False(t, out[0].PassedFilter)
	assert.True(t, out[0].Promising())
}

func TestFilterGenericPredicateRejection(t *testing.T) {
	g := sampleGraph()
	h := model.Hypothesis{Source: "A", Target: "C", Path: []string{"A", "B", "C"}, Predicates: []string{"related_to"}, Confidence: 5}
	ctx := NewFilterContext(g, config.PathFilterConfig{HubDegreeThreshold: 50, MinConfidence: 1}, []string{"related_to"})
	out := Filter([]model.Hypothesis{h}, ctx)
	assert.False(t, out[0].PassedFilter)
	assert.Contains(t, out[0].FilterReason, "predicate_semantics")
}

func TestFilterPassesCleanHypothesis(t *testing.T) {
	g := sampleGraph()
	h := model.Hypothesis{Source: "A", Target: "C", Path: []string{"A", "B", "C"}, Predicates: []string{"activates"}, Confidence: 3}
	ctx := NewFilterContext(g, config.PathFilterConfig{HubDegreeThreshold: 50, MinConfidence: 2}, nil)
	out := Filter([]model.Hypothesis{h}, ctx)
	assert.True(t, out[0].PassedFilter)
	assert.Nil(t, out[0].FilterReason)
}
