package dispatcher

import (
	"context"
	"fmt"

	"github.com/litreview/engine/internal/decisionhandlers"
	"github.com/litreview/engine/internal/measurement"
	"github.com/litreview/engine/internal/model"
)

// stageDecisionMade runs the Decision Handler Registry for the job's
// latest decision label. Handlers are inconsistent about who CASes the
// job's status afterward: insufficientSignal, fetchMoreLiterature, and
// strategicDownloadTargeted already transition (and, where relevant,
// re-enqueue) the job themselves; haltConfident, haltNoHypothesis, and
// verificationOutcome only record a terminal result and leave status at
// DECISION_MADE for the caller. So this stage reloads the job after
// dispatch and only applies its own CAS when the handler left status
// untouched — never a double transition, never a missed one.
func stageDecisionMade(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	active, err := d.store.LoadActiveSemanticGraph(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage decision_made: loading active graph: %w", err)
	}
	hyps, err := d.store.ListActiveHypotheses(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage decision_made: listing active hypotheses: %w", err)
	}
	hypValues := make([]model.Hypothesis, len(hyps))
	for i, h := range hyps {
		hypValues[i] = *h
	}

	decision, err := d.store.LatestDecisionResult(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage decision_made: loading latest decision result: %w", err)
	}
	snapshot, err := decodeSnapshot(decision.MeasurementsSnapshot)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage decision_made: %w", err)
	}
	if snapshot == nil {
		snapshot = &measurement.Snapshot{}
	}

	result, err := d.decisions.Dispatch(ctx, decisionhandlers.Input{
		Job:        job,
		Decision:   decision,
		Snapshot:   *snapshot,
		Graph:      &active.Graph,
		Hypotheses: hypValues,
		TopK:       d.policy.DecisionThresholds.TopKHypothesesToStore,
	})
	if err != nil {
		return stageResult{}, fmt.Errorf("stage decision_made: %w", err)
	}

	reloaded, err := d.store.LoadJob(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage decision_made: reloading job: %w", err)
	}
	if reloaded.Status != model.StatusDecisionMade {
		// The handler already transitioned (and possibly re-enqueued) the
		// job itself; nothing left for the generic CAS to do.
		return stageResult{}, nil
	}
	return stageResult{next: result.Status}, nil
}
