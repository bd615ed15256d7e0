// Package decision implements the Decision Provider (C7): a closed
// decision-label set produced from a measurements snapshot by a
// strict-order rule-based provider, with an optional LLM fallback.
// Grounded on original_source/backend/app/decision/decision_engine.py's
// ordered-rule structure and pkg/agent/context's prompt-construction
// idiom for the LLM fallback.
package decision

import (
	"context"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/measurement"
	"github.com/litreview/engine/internal/model"
)

// Provider produces a decision label from a measurements snapshot.
type Provider interface {
	Decide(ctx context.Context, snapshot measurement.Snapshot) (model.DecisionLabel, error)
}

// RuleBasedProvider applies the §4.7 ordered rule set; first match wins.
type RuleBasedProvider struct {
	Thresholds config.DecisionThresholds
}

func NewRuleBasedProvider(t config.DecisionThresholds) *RuleBasedProvider {
	return &RuleBasedProvider{Thresholds: t}
}

func (p *RuleBasedProvider) Decide(_ context.Context, s measurement.Snapshot) (model.DecisionLabel, error) {
	if s.PassedCount == 0 && s.PromisingCount == 0 {
		return model.DecisionInsufficientSignal, nil
	}
	if s.GrowthScore > 0 {
		return model.DecisionStrategicDownloadTargeted, nil
	}
	if s.MeanPathLength > 1 &&
		s.MaxPathsPerPair >= p.Thresholds.PathSupportThreshold &&
		s.IsDominantClear &&
		s.MaxNormalizedConfidence >= p.Thresholds.HighConfidenceThreshold {
		return model.DecisionHaltConfident, nil
	}
	if s.MeanPathLength > 1 &&
		absFloat(s.EvidenceGrowthRate) < 0.1 &&
		s.MaxPathsPerPair < p.Thresholds.PathSupportThreshold &&
		s.GraphDensity > 0 &&
		s.DiversityScore > 0 {
		return model.DecisionHaltNoHypothesis, nil
	}
	if s.GraphDensity < p.Thresholds.SparseGraphDensityThreshold {
		return model.DecisionFetchMoreLiterature, nil
	}
	return model.DecisionFetchMoreLiterature, nil
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
