package measurement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litreview/engine/internal/model"
)

func passedHypothesis(source, target string, confidence int, path ...string) model.Hypothesis {
	return model.Hypothesis{Source: source, Target: target, Confidence: confidence, PassedFilter: true, Path: path}
}

func TestComputeConfidenceAndDominance(t *testing.T) {
	hyps := []model.Hypothesis{
		passedHypothesis("A", "B", 9, "A", "X", "B"),
		passedHypothesis("A", "C", 3, "A", "Y", "C"),
	}
	graph := &model.Graph{Nodes: make([]model.Node, 5), Edges: make([]model.Edge, 3)}

	s := Compute(graph, hyps, JobMetadata{Mode: model.ModeDiscovery}, nil, 10, 0.2, IndirectPathOptions{}, nil)

	assert.Equal(t, 2, s.PassedCount)
	assert.InDelta(t, 0.9, s.MaxNormalizedConfidence, 1e-9)
	assert.True(t, s.IsDominantClear)
	assert.InDelta(t, 0.15, s.GraphDensity, 1e-9) // 3 / (5*4)
}

func TestComputeInsufficientWhenNoHypotheses(t *testing.T) {
	s := Compute(&model.Graph{}, nil, JobMetadata{Mode: model.ModeDiscovery}, nil, 10, 0.2, IndirectPathOptions{}, nil)
	assert.Equal(t, 0, s.PassedCount)
	assert.Equal(t, 0, s.PromisingCount)
}

func TestComputeVerificationShortCircuits(t *testing.T) {
	found := true
	v := &VerificationInput{
		RemainingNewQueries: 0,
		Result:              &model.VerificationResult{ConnectionFound: &found, ConnectionType: "direct"},
	}
	s := Compute(nil, nil, JobMetadata{Mode: model.ModeVerification}, nil, 10, 0.2, IndirectPathOptions{}, v)

	assert.True(t, s.VerificationComplete)
	assert.True(t, s.VerificationFound)
	assert.Equal(t, "direct", s.VerificationType)
	assert.Equal(t, 0, s.TotalCount)
}

func TestComputeGrowthScoreAgainstPrevious(t *testing.T) {
	prev := Compute(&model.Graph{}, []model.Hypothesis{passedHypothesis("A", "B", 5, "A", "X", "B")},
		JobMetadata{Mode: model.ModeDiscovery}, nil, 10, 0.2, IndirectPathOptions{}, nil)

	current := Compute(&model.Graph{}, []model.Hypothesis{
		passedHypothesis("A", "B", 5, "A", "X", "B"),
		passedHypothesis("C", "D", 5, "C", "Y", "D"),
	}, JobMetadata{Mode: model.ModeDiscovery}, &prev, 10, 0.2, IndirectPathOptions{}, nil)

	assert.Greater(t, current.GrowthScore, 0.0)
	assert.InDelta(t, 1.0, current.HypothesisStability, 1e-9)
}

func TestComputeIndirectPathDominantPair(t *testing.T) {
	hyps := []model.Hypothesis{
		passedHypothesis("A", "B", 9, "A", "X", "B"),
		passedHypothesis("A", "B", 8, "A", "Z", "B"),
		passedHypothesis("C", "D", 2, "C", "Y", "D"),
	}
	s := Compute(&model.Graph{}, hyps, JobMetadata{Mode: model.ModeDiscovery}, nil, 10, 0.2,
		IndirectPathOptions{Enabled: true, DominanceGapThreshold: 0.2}, nil)

	assert.Equal(t, 2, s.MaxPathsPerPair)
	assert.Contains(t, s.DominantPairID, "A")
}

func TestComputeDominantConfidenceGap(t *testing.T) {
	tests := []struct {
		name string
		hyps []model.Hypothesis
		want float64
	}{
		{
			name: "three pairs with differing max confidence uses ratio of top two maxes",
			hyps: []model.Hypothesis{
				passedHypothesis("A", "B", 9, "A", "X", "B"),
				passedHypothesis("A", "B", 4, "A", "W", "B"), // lower confidence, must not raise the pair's mean above its max
				passedHypothesis("C", "D", 6, "C", "Y", "D"),
				passedHypothesis("E", "F", 3, "E", "Z", "F"),
			},
			want: (9.0 - 6.0) / 9.0,
		},
		{
			name: "single pair yields no gap",
			hyps: []model.Hypothesis{
				passedHypothesis("A", "B", 9, "A", "X", "B"),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(&model.Graph{}, tt.hyps, JobMetadata{Mode: model.ModeDiscovery}, nil, 10, 0.2,
				IndirectPathOptions{Enabled: true, DominanceGapThreshold: 0.2}, nil)
			assert.InDelta(t, tt.want, s.DominantConfidenceGap, 1e-9)
		})
	}
}
