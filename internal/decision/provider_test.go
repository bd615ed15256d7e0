package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/measurement"
	"github.com/litreview/engine/internal/model"
)

func thresholds() config.DecisionThresholds {
	return config.DecisionThresholds{
		HighConfidenceThreshold:     0.8,
		SparseGraphDensityThreshold: 0.1,
		PathSupportThreshold:        2,
	}
}

func TestRuleBasedProviderInsufficientSignal(t *testing.T) {
	p := NewRuleBasedProvider(thresholds())
	label, err := p.Decide(context.Background(), measurement.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionInsufficientSignal, label)
}

func TestRuleBasedProviderGrowthTakesPriority(t *testing.T) {
	p := NewRuleBasedProvider(thresholds())
	s := measurement.Snapshot{PassedCount: 1, GrowthScore: 0.5, IsDominantClear: true, MaxNormalizedConfidence: 0.99}
	label, err := p.Decide(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionStrategicDownloadTargeted, label)
}

func TestRuleBasedProviderHaltConfident(t *testing.T) {
	p := NewRuleBasedProvider(thresholds())
	s := measurement.Snapshot{
		PassedCount:             1,
		MeanPathLength:          2,
		MaxPathsPerPair:         3,
		IsDominantClear:         true,
		MaxNormalizedConfidence: 0.9,
	}
	label, err := p.Decide(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionHaltConfident, label)
}

func TestRuleBasedProviderHaltNoHypothesis(t *testing.T) {
	p := NewRuleBasedProvider(thresholds())
	s := measurement.Snapshot{
		PassedCount:        1,
		MeanPathLength:     2,
		EvidenceGrowthRate: 0.01,
		MaxPathsPerPair:    1,
		GraphDensity:       0.3,
		DiversityScore:     0.5,
	}
	label, err := p.Decide(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionHaltNoHypothesis, label)
}

func TestRuleBasedProviderDefaultsToFetchMore(t *testing.T) {
	p := NewRuleBasedProvider(thresholds())
	s := measurement.Snapshot{PassedCount: 1, GraphDensity: 0.5, DiversityScore: 0}
	label, err := p.Decide(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionFetchMoreLiterature, label)
}

type stubLLM struct {
	text string
	err  error
}

func (s stubLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return s.text, s.err
}

func TestLLMProviderMatchesLabelBySubstring(t *testing.T) {
	p := NewLLMProvider(stubLLM{text: "I recommend HALT_CONFIDENT because evidence is strong."})
	label, err := p.Decide(context.Background(), measurement.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionHaltConfident, label)
}

func TestLLMProviderFallsBackOnError(t *testing.T) {
	p := NewLLMProvider(stubLLM{err: errors.New("unavailable")})
	label, err := p.Decide(context.Background(), measurement.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionFetchMoreLiterature, label)
}

func TestLLMProviderFallsBackOnUnparsableResponse(t *testing.T) {
	p := NewLLMProvider(stubLLM{text: "I am not sure what to recommend."})
	label, err := p.Decide(context.Background(), measurement.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionFetchMoreLiterature, label)
}

func TestControllerRuleBasedMode(t *testing.T) {
	c := NewController("rule_based", NewRuleBasedProvider(thresholds()), nil)
	label, provider, fallback, _, err := c.Decide(context.Background(), measurement.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionInsufficientSignal, label)
	assert.Equal(t, "rule_based", provider)
	assert.False(t, fallback)
}

func TestControllerLLMModeReturnsLLMFallbackLabelOnError(t *testing.T) {
	c := NewController("llm", NewRuleBasedProvider(thresholds()), NewLLMProvider(stubLLM{err: errors.New("down")}))
	label, provider, fallback, reason, err := c.Decide(context.Background(), measurement.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionFetchMoreLiterature, label)
	assert.Equal(t, "llm", provider)
	assert.False(t, fallback)
	assert.Empty(t, reason)
}
