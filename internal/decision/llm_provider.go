package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/measurement"
	"github.com/litreview/engine/internal/model"
)

var discoveryLabels = []model.DecisionLabel{
	model.DecisionHaltConfident,
	model.DecisionHaltNoHypothesis,
	model.DecisionInsufficientSignal,
	model.DecisionFetchMoreLiterature,
	model.DecisionStrategicDownloadTargeted,
}

// LLMProvider asks the LLMProvider external collaborator to pick a
// decision label, matching the response against the closed set by
// substring; any failure (call error, unparsable/no-match response)
// falls back to FETCH_MORE_LITERATURE per §4.7.
type LLMProvider struct {
	Model llm.Provider
}

func NewLLMProvider(m llm.Provider) *LLMProvider {
	return &LLMProvider{Model: m}
}

func (p *LLMProvider) Decide(ctx context.Context, s measurement.Snapshot) (model.DecisionLabel, error) {
	text, err := p.Model.Generate(ctx, buildDecisionPrompt(s), llm.GenerateOptions{})
	if err != nil {
		return model.DecisionFetchMoreLiterature, nil
	}
	lower := strings.ToLower(text)
	for _, label := range discoveryLabels {
		if strings.Contains(lower, strings.ToLower(string(label))) {
			return label, nil
		}
	}
	return model.DecisionFetchMoreLiterature, nil
}

func buildDecisionPrompt(s measurement.Snapshot) string {
	var b strings.Builder
	b.WriteString("Choose exactly one decision label from this set: ")
	for i, label := range discoveryLabels {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(label))
	}
	b.WriteString(".\n\nMeasurements:\n")
	fmt.Fprintf(&b, "passed_count=%d promising_count=%d\n", s.PassedCount, s.PromisingCount)
	fmt.Fprintf(&b, "max_normalized_confidence=%.3f mean_normalized_confidence=%.3f is_dominant_clear=%v\n",
		s.MaxNormalizedConfidence, s.MeanNormalizedConfidence, s.IsDominantClear)
	fmt.Fprintf(&b, "graph_density=%.3f diversity_score=%.3f growth_score=%.3f\n",
		s.GraphDensity, s.DiversityScore, s.GrowthScore)
	fmt.Fprintf(&b, "max_paths_per_pair=%d mean_path_length=%.2f evidence_growth_rate=%.3f\n",
		s.MaxPathsPerPair, s.MeanPathLength, s.EvidenceGrowthRate)
	b.WriteString("\nRespond with the label name only.")
	return b.String()
}

// Controller dispatches to the configured decision mode (§4.7's
// rule_based / hybrid / llm controller modes).
type Controller struct {
	Mode  string // rule_based | hybrid | llm
	Rule  *RuleBasedProvider
	Model *LLMProvider
}

func NewController(mode string, rule *RuleBasedProvider, model *LLMProvider) *Controller {
	return &Controller{Mode: mode, Rule: rule, Model: model}
}

// Decide returns the chosen label, which provider actually produced it,
// and whether a fallback path was taken.
func (c *Controller) Decide(ctx context.Context, s measurement.Snapshot) (label model.DecisionLabel, providerUsed string, fallbackUsed bool, fallbackReason string, err error) {
	switch c.Mode {
	case "llm":
		if c.Model == nil {
			return "", "", false, "", fmt.Errorf("decision: llm mode configured without an LLM provider")
		}
		label, err = c.Model.Decide(ctx, s)
		if err != nil && c.Rule != nil {
			label, _ = c.Rule.Decide(ctx, s)
			return label, "rule_based", true, "llm provider error", nil
		}
		return label, "llm", false, "", err
	case "hybrid":
		label, err = c.Rule.Decide(ctx, s)
		if err == nil && label != model.DecisionUndecided {
			return label, "rule_based", false, "", nil
		}
		if c.Model != nil {
			label, err = c.Model.Decide(ctx, s)
			return label, "llm", true, "rule provider undecided", err
		}
		return model.DecisionFetchMoreLiterature, "rule_based", true, "rule provider undecided, no llm fallback configured", nil
	default:
		label, err = c.Rule.Decide(ctx, s)
		return label, "rule_based", false, "", err
	}
}
