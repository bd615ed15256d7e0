// Package signal implements the Signal Evaluator & Applier (C10):
// attributing reputation-affecting outcomes to SearchQueryRuns once a
// new DecisionResult lands, and recomputing paper impact scores for the
// Strategic Download handler. Grounded on SPEC_FULL.md §4.10; no
// original_source module implements this stage directly (dropped by the
// distillation along with the rest of the reputation feedback loop), so
// the formulas here follow §4.10's prose exactly rather than porting a
// Python file.
package signal

import (
	"context"
	"fmt"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

// classification is the three-way outcome a weighted measurement delta
// collapses to.
type classification struct {
	delta  int
	status model.SearchQueryStatus
}

var (
	classWin             = classification{delta: 1, status: model.SearchQueryReusable}
	classLoss            = classification{delta: -1, status: model.SearchQueryBlocked}
	classNoSignal        = classification{delta: 0, status: model.SearchQueryExhausted}
)

// measurementValue extracts a numeric measurement from a DecisionResult's
// JSON-decoded snapshot map, tolerating the float64 shape
// encoding/json's Unmarshal always produces for JSON numbers.
func measurementValue(snapshot map[string]any, key string) float64 {
	v, ok := snapshot[key]
	if !ok {
		return 0
	}
	f, _ := v.(float64)
	return f
}

// filteredToTotalRatio derives passed_count/total_count from the
// snapshot — §4.10 names this measurement directly but the Measurement
// Engine's typed Snapshot only stores its two components.
func filteredToTotalRatio(snapshot map[string]any) float64 {
	total := measurementValue(snapshot, "total_count")
	if total == 0 {
		return 0
	}
	return measurementValue(snapshot, "passed_count") / total
}

// measurementValueByWeightKey maps a §4.10 measurement-weight key to the
// DecisionResult snapshot field it reads.
func measurementValueByWeightKey(snapshot map[string]any, key string) float64 {
	switch key {
	case "passed_hypothesis_count":
		return measurementValue(snapshot, "passed_count")
	case "mean_confidence":
		return measurementValue(snapshot, "mean_normalized_confidence")
	case "graph_density":
		return measurementValue(snapshot, "graph_density")
	case "filtered_to_total_ratio":
		return filteredToTotalRatio(snapshot)
	default:
		return 0
	}
}

// weightedDelta computes the weighted, max-delta-normalized sum of
// change across every configured measurement between two snapshots.
func weightedDelta(prev, curr map[string]any, params config.SignalParams) float64 {
	var total float64
	for key, weight := range params.MeasurementWeights {
		maxDelta := params.MeasurementMaxDeltas[key]
		if maxDelta == 0 {
			continue
		}
		d := measurementValueByWeightKey(curr, key) - measurementValueByWeightKey(prev, key)
		total += weight * (d / maxDelta)
	}
	return total
}

// classify buckets a weighted delta into the three-way outcome §4.10
// defines.
func classify(delta float64, params config.SignalParams) classification {
	switch {
	case delta >= params.PositiveThreshold:
		return classWin
	case delta <= params.NegativeThreshold:
		return classLoss
	default:
		return classNoSignal
	}
}

// EvaluateAndApply runs C10 for a job right after a new DecisionResult
// has been written: it finds the previous DecisionResult, attributes a
// classified delta to every SearchQueryRun created strictly between the
// two, and applies the resulting status/reputation changes. Runs whose
// signal_delta has already been set are never revisited (idempotence
// lives in the DB column itself — SetRunSignalDelta only writes once).
func EvaluateAndApply(ctx context.Context, st *store.Store, jobID int64, params config.SignalParams) (attributed int, err error) {
	history, err := st.ListDecisionResults(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("listing decision history for job %d: %w", jobID, err)
	}
	if len(history) < 2 {
		return 0, nil
	}
	curr := history[len(history)-1]
	prev := history[len(history)-2]

	runs, err := st.ListUnattributedSearchQueryRuns(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("listing unattributed runs for job %d: %w", jobID, err)
	}

	delta := weightedDelta(prev.MeasurementsSnapshot, curr.MeasurementsSnapshot, params)
	class := classify(delta, params)

	for _, run := range runs {
		if !run.CreatedAt.After(prev.CreatedAt) || !run.CreatedAt.Before(curr.CreatedAt) {
			continue
		}
		if err := applySignalResult(ctx, st, run, class, params); err != nil {
			return attributed, err
		}
		attributed++
	}
	return attributed, nil
}

// applySignalResult sets signal_delta on the run and updates its parent
// SearchQuery's status and reputation score per the classified outcome.
func applySignalResult(ctx context.Context, st *store.Store, run *model.SearchQueryRun, class classification, params config.SignalParams) error {
	if err := st.SetRunSignalDelta(ctx, run.ID, class.delta); err != nil {
		return fmt.Errorf("setting signal delta on run %s: %w", run.ID, err)
	}
	if err := st.SetSearchQueryStatus(ctx, run.SearchQueryID, class.status); err != nil {
		return fmt.Errorf("updating search query %s status: %w", run.SearchQueryID, err)
	}

	var reputationDelta int
	switch class {
	case classWin:
		reputationDelta = params.ReputationPositive
	case classLoss:
		reputationDelta = params.ReputationNegative
	default:
		return nil
	}
	if err := st.ApplyReputationDelta(ctx, run.SearchQueryID, reputationDelta); err != nil {
		return fmt.Errorf("applying reputation delta to search query %s: %w", run.SearchQueryID, err)
	}
	return nil
}
