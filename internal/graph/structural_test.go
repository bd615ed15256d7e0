package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/model"
)

func TestProjectSubjectPrefersParentheticalAcronym(t *testing.T) {
	assert.Equal(t, "CRISPR", projectSubject("clustered regularly interspaced short palindromic repeats (CRISPR)"))
}

func TestProjectSubjectFallsBackToHeadWord(t *testing.T) {
	assert.Equal(t, "model", projectSubject("the trained model"))
}

func TestProjectPredicateMapsKnownVerb(t *testing.T) {
	assert.Equal(t, "used_for", projectPredicate("uses a transformer"))
	assert.Equal(t, "causes", projectPredicate("leads to overfitting"))
}

func TestProjectPredicateDefaultsToRelatedTo(t *testing.T) {
	assert.Equal(t, "related_to", projectPredicate("correlates with"))
}

func TestProjectObjectPrefersAllowListedHead(t *testing.T) {
	assert.Equal(t, "dataset", projectObject("a large training dataset"))
}

func TestProjectObjectStripsFillersAndOfPrefix(t *testing.T) {
	got := projectObject("ensuring that of robust generalization")
	assert.Equal(t, "robust generalization", got)
}

func TestBuildStructuralGroupsAndSumsSupport(t *testing.T) {
	triples := []*model.Triple{
		{ID: "t1", Subject: "the model", Predicate: "uses", Object: "a dataset", BlockID: "b1", IngestionSourceID: "s1"},
		{ID: "t2", Subject: "the model", Predicate: "utilizes", Object: "a dataset", BlockID: "b2", IngestionSourceID: "s1"},
	}
	g := BuildStructural(triples)
	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, "model", e.Subject)
	assert.Equal(t, "used_for", e.Predicate)
	assert.Equal(t, "dataset", e.Object)
	assert.Equal(t, 2, e.Support)
	assert.ElementsMatch(t, []string{"t1", "t2"}, e.TripleIDs)
	assert.ElementsMatch(t, []string{"b1", "b2"}, e.BlockIDs)
	assert.Equal(t, []string{"s1"}, e.SourceIDs)
}

func TestBuildStructuralDropsEmptyHandles(t *testing.T) {
	triples := []*model.Triple{{ID: "t1", Subject: "", Predicate: "uses", Object: "x"}}
	g := BuildStructural(triples)
	assert.Empty(t, g.Edges)
}

func TestBuildStructuralDeduplicatesRepeatedTripleID(t *testing.T) {
	triples := []*model.Triple{
		{ID: "t1", Subject: "the model", Predicate: "uses", Object: "a dataset"},
		{ID: "t1", Subject: "the model", Predicate: "uses", Object: "a dataset"},
	}
	g := BuildStructural(triples)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, 1, g.Edges[0].Support)
}
