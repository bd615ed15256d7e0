package decisionhandlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/litreview/engine/internal/events"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

type pairGroup struct {
	source, target string
	maxConfidence  int
	members        []model.Hypothesis
}

func groupByPair(hyps []model.Hypothesis) map[string]*pairGroup {
	groups := make(map[string]*pairGroup)
	for _, h := range hyps {
		key := h.Source + "→" + h.Target
		g, ok := groups[key]
		if !ok {
			g = &pairGroup{source: h.Source, target: h.Target}
			groups[key] = g
		}
		g.members = append(g.members, h)
		if h.Confidence > g.maxConfidence {
			g.maxConfidence = h.Confidence
		}
	}
	return groups
}

func sortedPairsByConfidence(groups map[string]*pairGroup) []*pairGroup {
	out := make([]*pairGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].maxConfidence > out[j].maxConfidence })
	return out
}

// unionTripleIDs collects the distinct triple ids referenced by a set of
// hypotheses, preserving first-seen order.
func unionTripleIDs(hyps []model.Hypothesis) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, h := range hyps {
		for _, id := range h.TripleIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

func haltConfident(ctx context.Context, st *store.Store, pub *events.Publisher, in Input) (HandlerResult, error) {
	var passed []model.Hypothesis
	for _, h := range in.Hypotheses {
		if h.PassedFilter {
			passed = append(passed, h)
		}
	}
	groups := groupByPair(passed)
	ordered := sortedPairsByConfidence(groups)

	dominantID := in.Snapshot.DominantPairID
	var dominant *pairGroup
	var alternatives []*pairGroup
	for _, g := range ordered {
		key := g.source + "→" + g.target
		if dominantID != "" && key == dominantID && dominant == nil {
			dominant = g
			continue
		}
		alternatives = append(alternatives, g)
	}
	if dominant == nil && len(ordered) > 0 {
		dominant = ordered[0]
		alternatives = ordered[1:]
	}
	k := in.TopK
	if k <= 0 {
		k = 5
	}
	if len(alternatives) > k {
		alternatives = alternatives[:k]
	}

	evidence, err := st.ListJobPaperEvidence(ctx, in.Job.ID)
	if err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: loading job paper evidence: %w", err)
	}

	var dominantHyps []model.Hypothesis
	var dominantPairKey string
	if dominant != nil {
		dominantHyps = dominant.members
		dominantPairKey = dominant.source + "→" + dominant.target
	}
	tripleIDs := unionTripleIDs(dominantHyps)
	triples, err := st.ListTriples(ctx, in.Job.ID)
	if err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: loading triples: %w", err)
	}
	wanted := make(map[string]struct{}, len(tripleIDs))
	for _, id := range tripleIDs {
		wanted[id] = struct{}{}
	}
	var snippets []string
	for _, t := range triples {
		if _, ok := wanted[t.ID]; ok {
			snippets = append(snippets, fmt.Sprintf("%s %s %s", t.Subject, t.Predicate, t.Object))
		}
	}

	altSummaries := make([]map[string]any, 0, len(alternatives))
	for _, a := range alternatives {
		altSummaries = append(altSummaries, map[string]any{
			"source":         a.source,
			"target":         a.target,
			"max_confidence": a.maxConfidence,
		})
	}

	result := map[string]any{
		"dominant_pair":       dominantPairKey,
		"dominant_hypotheses": dominantHyps,
		"alternatives":        altSummaries,
		"evidence_papers":     evidence,
		"evidence_snippets":   snippets,
		"graph":               subviewForHypotheses(in.Graph, in.Hypotheses),
	}
	if err := st.SetTerminalResult(ctx, in.Job.ID, result); err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: storing terminal result: %w", err)
	}
	if pub != nil {
		_ = pub.PublishDecisionMade(ctx, in.Job.ID, events.DecisionMadePayload{
			Type:          "decision.made",
			JobID:         in.Job.ID,
			DecisionLabel: in.Decision.DecisionLabel,
			ProviderUsed:  in.Decision.ProviderUsed,
		})
	}
	return HandlerResult{Status: model.StatusCompleted, Message: "halt_confident", Data: result}, nil
}

// subviewForHypotheses projects the graph down to nodes/edges touched by
// the given hypotheses' paths.
func subviewForHypotheses(g *model.Graph, hyps []model.Hypothesis) *model.Graph {
	if g == nil {
		return nil
	}
	keep := make(map[string]struct{})
	for _, h := range hyps {
		for _, n := range h.Path {
			keep[n] = struct{}{}
		}
	}
	sub := &model.Graph{}
	for _, n := range g.Nodes {
		if _, ok := keep[n.Text]; ok {
			sub.Nodes = append(sub.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		_, s := keep[e.Subject]
		_, o := keep[e.Object]
		if s && o {
			sub.Edges = append(sub.Edges, e)
		}
	}
	return sub
}

func haltNoHypothesis(ctx context.Context, st *store.Store, pub *events.Publisher, in Input) (HandlerResult, error) {
	reason := "stable_low_growth"
	if in.Snapshot.MaxPathsPerPair > 0 {
		reason = "weak_support"
	}
	result := map[string]any{
		"reason":                reason,
		"evidence_growth_rate":  in.Snapshot.EvidenceGrowthRate,
		"graph_density":         in.Snapshot.GraphDensity,
		"diversity_score":       in.Snapshot.DiversityScore,
	}
	if err := st.SetTerminalResult(ctx, in.Job.ID, result); err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: storing terminal result: %w", err)
	}
	if pub != nil {
		_ = pub.PublishDecisionMade(ctx, in.Job.ID, events.DecisionMadePayload{
			Type: "decision.made", JobID: in.Job.ID,
			DecisionLabel: in.Decision.DecisionLabel, ProviderUsed: in.Decision.ProviderUsed,
		})
	}
	return HandlerResult{Status: model.StatusCompleted, Message: reason, Data: result}, nil
}

func insufficientSignal(ctx context.Context, st *store.Store, pub *events.Publisher, in Input) (HandlerResult, error) {
	var promising []model.Hypothesis
	for _, h := range in.Hypotheses {
		if h.Promising() {
			promising = append(promising, h)
		}
	}
	sort.Slice(promising, func(i, j int) bool { return promising[i].Confidence > promising[j].Confidence })
	k := in.TopK
	if k <= 0 {
		k = 5
	}
	if len(promising) > k {
		promising = promising[:k]
	}

	if ok, err := st.UpdateStatus(ctx, in.Job.ID, in.Job.Status, model.StatusNeedMoreInput); err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: transitioning to NEED_MORE_INPUT: %w", err)
	} else if !ok {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: job %d status changed concurrently", in.Job.ID)
	}
	if pub != nil {
		_ = pub.PublishDecisionMade(ctx, in.Job.ID, events.DecisionMadePayload{
			Type: "decision.made", JobID: in.Job.ID,
			DecisionLabel: in.Decision.DecisionLabel, ProviderUsed: in.Decision.ProviderUsed,
		})
	}
	return HandlerResult{
		Status:     model.StatusNeedMoreInput,
		Message:    "insufficient_signal",
		NextAction: "awaiting_user_input",
		Data:       map[string]any{"suggestions": promising},
	}, nil
}

func fetchMoreLiterature(maxPapers int) Handler {
	return func(ctx context.Context, st *store.Store, pub *events.Publisher, in Input) (HandlerResult, error) {
		evidence, err := st.ListJobPaperEvidence(ctx, in.Job.ID)
		if err != nil {
			return HandlerResult{}, fmt.Errorf("decisionhandlers: loading job paper evidence: %w", err)
		}
		if maxPapers > 0 && len(evidence) >= maxPapers {
			result := map[string]any{"reason": "max_papers_reached", "paper_count": len(evidence)}
			if err := st.SetTerminalResult(ctx, in.Job.ID, result); err != nil {
				return HandlerResult{}, err
			}
			return HandlerResult{Status: model.StatusCompleted, Message: "max_papers_reached", Data: result}, nil
		}
		if ok, err := st.UpdateStatus(ctx, in.Job.ID, in.Job.Status, model.StatusFetchQueued); err != nil {
			return HandlerResult{}, fmt.Errorf("decisionhandlers: transitioning to FETCH_QUEUED: %w", err)
		} else if !ok {
			return HandlerResult{}, fmt.Errorf("decisionhandlers: job %d status changed concurrently", in.Job.ID)
		}
		if err := st.Enqueue(ctx, in.Job.ID); err != nil {
			return HandlerResult{}, fmt.Errorf("decisionhandlers: re-enqueuing job: %w", err)
		}
		return HandlerResult{Status: model.StatusFetchQueued, Message: "fetch_queued", NextAction: "fetch_more_literature"}, nil
	}
}

func strategicDownloadTargeted(ctx context.Context, st *store.Store, pub *events.Publisher, in Input) (HandlerResult, error) {
	evidence, err := st.ListJobPaperEvidence(ctx, in.Job.ID)
	if err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: loading job paper evidence: %w", err)
	}
	hasUnevaluated := false
	for _, e := range evidence {
		if !e.Evaluated {
			hasUnevaluated = true
			break
		}
	}
	next := model.StatusFetchQueued
	nextAction := "fetch_more_literature"
	if hasUnevaluated {
		next = model.StatusDownloadQueued
		nextAction = "strategic_download"
	}
	if ok, err := st.UpdateStatus(ctx, in.Job.ID, in.Job.Status, next); err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: transitioning to %s: %w", next, err)
	} else if !ok {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: job %d status changed concurrently", in.Job.ID)
	}
	if err := st.Enqueue(ctx, in.Job.ID); err != nil {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: re-enqueuing job: %w", err)
	}
	return HandlerResult{Status: next, Message: "strategic_download_targeted", NextAction: nextAction}, nil
}

func verificationOutcome(found bool) Handler {
	return func(ctx context.Context, st *store.Store, pub *events.Publisher, in Input) (HandlerResult, error) {
		v := model.VerificationResult{JobID: in.Job.ID, ConnectionFound: &found}
		for _, h := range in.Hypotheses {
			if h.PassedFilter {
				v.Source, v.Target, v.Path, v.Explanation = h.Source, h.Target, h.Path, h.Explanation
				break
			}
		}
		stored, err := st.CreateVerificationResult(ctx, v)
		if err != nil {
			return HandlerResult{}, fmt.Errorf("decisionhandlers: storing verification result: %w", err)
		}
		result := map[string]any{
			"connection_found":  found,
			"path":              stored.Path,
			"supporting_papers": stored.SupportingPapers,
		}
		if err := st.SetTerminalResult(ctx, in.Job.ID, result); err != nil {
			return HandlerResult{}, fmt.Errorf("decisionhandlers: storing terminal result: %w", err)
		}
		if pub != nil {
			_ = pub.PublishDecisionMade(ctx, in.Job.ID, events.DecisionMadePayload{
				Type: "decision.made", JobID: in.Job.ID,
				DecisionLabel: in.Decision.DecisionLabel, ProviderUsed: in.Decision.ProviderUsed,
			})
		}
		return HandlerResult{Status: model.StatusCompleted, Message: "verification_complete", Data: result}, nil
	}
}
