package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

func TestHypothesisSignatureStableAcrossPathWording(t *testing.T) {
	a := model.Hypothesis{Source: "Gene X", Target: "Disease Y", Path: []string{"Gene X", "Protein Z", "Disease Y"}, Explanation: "version one"}
	b := model.Hypothesis{Source: "gene x", Target: "disease y", Path: []string{"different", "path"}, Explanation: "totally different wording"}

	assert.Equal(t, HypothesisSignature(a, 64), HypothesisSignature(b, 64))
}

func TestHypothesisSignatureDiffersAcrossEndpoints(t *testing.T) {
	a := model.Hypothesis{Source: "Gene X", Target: "Disease Y"}
	b := model.Hypothesis{Source: "Gene X", Target: "Disease Z"}

	assert.NotEqual(t, HypothesisSignature(a, 64), HypothesisSignature(b, 64))
}

func TestHypothesisSignatureRespectsLength(t *testing.T) {
	h := model.Hypothesis{Source: "a", Target: "b"}

	sig := HypothesisSignature(h, 16)

	assert.Len(t, sig, 16)
}

func TestShouldRunQueryBlockedNeverRuns(t *testing.T) {
	sq := &model.SearchQuery{Status: model.SearchQueryBlocked}

	should, reason, err := ShouldRunQuery(context.Background(), nil, sq, config.QueryOrchestratorConfig{MaxReuseAttempts: 3})

	require.NoError(t, err)
	assert.False(t, should)
	assert.Equal(t, "blocked", reason)
}

func TestShouldRunQueryExhaustedNeverRuns(t *testing.T) {
	sq := &model.SearchQuery{Status: model.SearchQueryExhausted}

	should, reason, err := ShouldRunQuery(context.Background(), nil, sq, config.QueryOrchestratorConfig{MaxReuseAttempts: 3})

	require.NoError(t, err)
	assert.False(t, should)
	assert.Equal(t, "exhausted", reason)
}

func TestShouldRunQueryNewAlwaysRuns(t *testing.T) {
	sq := &model.SearchQuery{Status: model.SearchQueryNew}

	should, reason, err := ShouldRunQuery(context.Background(), nil, sq, config.QueryOrchestratorConfig{MaxReuseAttempts: 3})

	require.NoError(t, err)
	assert.True(t, should)
	assert.Equal(t, "initial_attempt", reason)
}

func TestSelectTopKLeadsPrefersPassedOverPromising(t *testing.T) {
	passed := model.Hypothesis{Source: "A", Target: "B", Confidence: 3, PassedFilter: true}
	promising := model.Hypothesis{Source: "C", Target: "D", Confidence: 9, FilterReason: map[string]string{"evidence_threshold": "x"}}

	leads := SelectTopKLeads([]model.Hypothesis{promising, passed}, 1)

	require.Len(t, leads, 1)
	assert.Equal(t, "A", leads[0].Source)
}

func TestSelectTopKLeadsGroupsByEndpointPairAndTakesMaxConfidenceLeader(t *testing.T) {
	low := model.Hypothesis{Source: "A", Target: "B", Confidence: 2, PassedFilter: true, Explanation: "low"}
	high := model.Hypothesis{Source: "a", Target: "b", Confidence: 8, PassedFilter: true, Explanation: "high"}

	leads := SelectTopKLeads([]model.Hypothesis{low, high}, 5)

	require.Len(t, leads, 1)
	assert.Equal(t, "high", leads[0].Explanation)
}

func TestSelectTopKLeadsSortsDescendingWithinTier(t *testing.T) {
	a := model.Hypothesis{Source: "A", Target: "B", Confidence: 2, PassedFilter: true}
	b := model.Hypothesis{Source: "C", Target: "D", Confidence: 9, PassedFilter: true}
	c := model.Hypothesis{Source: "E", Target: "F", Confidence: 5, PassedFilter: true}

	leads := SelectTopKLeads([]model.Hypothesis{a, b, c}, 3)

	require.Len(t, leads, 3)
	assert.Equal(t, "C", leads[0].Source)
	assert.Equal(t, "E", leads[1].Source)
	assert.Equal(t, "A", leads[2].Source)
}

func TestSelectTopKLeadsExcludesHypothesesThatAreNeitherPassedNorPromising(t *testing.T) {
	rejected := model.Hypothesis{Source: "A", Target: "B", Confidence: 9, FilterReason: map[string]string{"hub_degree": "x"}}

	leads := SelectTopKLeads([]model.Hypothesis{rejected}, 5)

	assert.Empty(t, leads)
}
