package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/measurement"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/pathreasoning"
	"github.com/litreview/engine/internal/signal"
	"github.com/litreview/engine/internal/store"
)

// pathReasoningOptions builds the path reasoner's per-run Options from a
// job's decoded config: a job with seeds configured runs in "query"
// mode (targeted path search from those seeds); every other job runs in
// "explore" mode (unconstrained enumeration).
func pathReasoningOptions(cfg config.JobConfig) pathreasoning.Options {
	opts := pathreasoning.Options{
		Mode:      "explore",
		Stoplist:  cfg.PathReasoning.Stoplist,
		AllowLen3: cfg.PathReasoning.AllowLen3,
		MaxHops:   cfg.PathReasoning.MaxHops,
	}
	if len(cfg.PathReasoning.Seeds) > 0 {
		opts.Mode = "query"
		opts.Seeds = cfg.PathReasoning.Seeds
	}
	return opts
}

// stageGraphSemanticMerged runs path reasoning and the post-generation
// filter over the job's active semantic graph, replaces its active
// hypothesis set, and advances to PATH_REASONING_DONE.
func stageGraphSemanticMerged(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	active, err := d.store.LoadActiveSemanticGraph(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage graph_semantic_merged: loading active graph: %w", err)
	}
	jobCfg, err := decodeJobConfig(job.Config)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage graph_semantic_merged: %w", err)
	}

	hyps := pathreasoning.Run(&active.Graph, pathReasoningOptions(jobCfg))
	filterCtx := pathreasoning.NewFilterContext(&active.Graph, d.policy.PathFilter, d.policy.GraphRules.GenericPredicates)
	hyps = pathreasoning.Filter(hyps, filterCtx)

	if _, err := d.store.ReplaceActiveHypotheses(ctx, job.ID, hyps); err != nil {
		return stageResult{}, fmt.Errorf("stage graph_semantic_merged: replacing active hypotheses: %w", err)
	}
	d.publishProgress(ctx, job.ID, "path_reasoning", "completed", fmt.Sprintf("%d hypotheses generated", len(hyps)))
	return stageResult{next: model.StatusPathReasoningDone, reenqueue: true}, nil
}

// decodeSnapshot round-trips a persisted DecisionResult's
// measurements_snapshot JSONB blob back into a typed Snapshot for use as
// measurement.Compute's previous argument. passedPairKeys is unexported
// and never round-trips, so hypothesis_stability degrades to 0 across
// dispatcher invocations rather than within a single one — an accepted
// limitation (see DESIGN.md).
func decodeSnapshot(raw map[string]any) (*measurement.Snapshot, error) {
	if raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshaling prior snapshot: %w", err)
	}
	var s measurement.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling prior snapshot: %w", err)
	}
	return &s, nil
}

// verificationInput builds measurement.Compute's verification short-
// circuit facts for a verification-mode job: RemainingNewQueries counts
// SearchQuery rows still eligible to run (status new or reusable — the
// same statuses ShouldRunQuery permits), and Result's ConnectionFound is
// true iff path reasoning produced any filter-passing hypothesis this
// cycle (verificationOutcome then persists the actual VerificationResult
// once the decision label resolves).
func verificationInput(ctx context.Context, d *Dispatcher, jobID int64, hyps []model.Hypothesis) (*measurement.VerificationInput, error) {
	newQ, err := d.store.ListSearchQueriesByStatus(ctx, jobID, model.SearchQueryNew)
	if err != nil {
		return nil, fmt.Errorf("listing new search queries: %w", err)
	}
	reusableQ, err := d.store.ListSearchQueriesByStatus(ctx, jobID, model.SearchQueryReusable)
	if err != nil {
		return nil, fmt.Errorf("listing reusable search queries: %w", err)
	}

	found := false
	var connType string
	for _, h := range hyps {
		if h.PassedFilter {
			found = true
			connType = h.Mode
			break
		}
	}
	return &measurement.VerificationInput{
		RemainingNewQueries: len(newQ) + len(reusableQ),
		Result: &model.VerificationResult{
			JobID:           jobID,
			ConnectionFound: &found,
			ConnectionType:  connType,
		},
	}, nil
}

// stagePathReasoningDone runs the Measurement Engine and the Decision
// Controller, persists the new DecisionResult, runs the Signal
// Evaluator's reputation feedback and impact-score recompute, and
// advances to DECISION_MADE.
func stagePathReasoningDone(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	active, err := d.store.LoadActiveSemanticGraph(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: loading active graph: %w", err)
	}
	hyps, err := d.store.ListActiveHypotheses(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: listing active hypotheses: %w", err)
	}
	hypValues := make([]model.Hypothesis, len(hyps))
	for i, h := range hyps {
		hypValues[i] = *h
	}

	prevResult, err := d.store.LatestDecisionResult(ctx, job.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: loading latest decision result: %w", err)
	}
	var previous *measurement.Snapshot
	if prevResult != nil {
		previous, err = decodeSnapshot(prevResult.MeasurementsSnapshot)
		if err != nil {
			return stageResult{}, fmt.Errorf("stage path_reasoning_done: %w", err)
		}
	}

	var verification *measurement.VerificationInput
	if job.Mode == model.ModeVerification {
		verification, err = verificationInput(ctx, d, job.ID, hypValues)
		if err != nil {
			return stageResult{}, fmt.Errorf("stage path_reasoning_done: %w", err)
		}
	}

	snapshot := measurement.Compute(
		&active.Graph,
		hypValues,
		measurement.JobMetadata{Mode: job.Mode},
		previous,
		d.policy.DecisionThresholds.ConfidenceNormalizationFactor,
		d.policy.DecisionThresholds.DominantGapRatio,
		measurement.IndirectPathOptions{
			Enabled:               d.policy.IndirectPath.Enabled,
			DominanceGapThreshold: d.policy.IndirectPath.DominanceGapThreshold,
		},
		verification,
	)

	label, providerUsed, fallbackUsed, fallbackReason, err := d.controller.Decide(ctx, snapshot)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: deciding: %w", err)
	}

	snapshotJSON, err := snapshotToMap(snapshot)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: %w", err)
	}
	if _, err := d.store.CreateDecisionResult(ctx, model.DecisionResult{
		JobID:                job.ID,
		DecisionLabel:        label,
		ProviderUsed:         providerUsed,
		MeasurementsSnapshot: snapshotJSON,
		FallbackUsed:         fallbackUsed,
		FallbackReason:       fallbackReason,
	}); err != nil {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: persisting decision result: %w", err)
	}

	if _, err := signal.EvaluateAndApply(ctx, d.store, job.ID, d.policy.SignalParams); err != nil {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: evaluating signal: %w", err)
	}
	if err := signal.RecomputeImpactScores(ctx, d.store, job.ID, d.policy.DecisionThresholds.ConfidenceNormalizationFactor); err != nil {
		return stageResult{}, fmt.Errorf("stage path_reasoning_done: recomputing impact scores: %w", err)
	}

	d.publishProgress(ctx, job.ID, "decision", "completed", string(label))
	return stageResult{next: model.StatusDecisionMade, reenqueue: true}, nil
}

// snapshotToMap converts a typed Snapshot to the map[string]any
// DecisionResult persists (the JSONB persistence boundary — see
// internal/measurement's package doc).
func snapshotToMap(s measurement.Snapshot) (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return m, nil
}
