package signal

import (
	"context"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/store"
)

const paperSourceRefPrefix = "paper:"

// RecomputeImpactScores implements §4.10's impact-scoring pass for the
// Strategic Download handler: for every JobPaperEvidence row of a job,
// recompute impact_score = hypo_ref_count + cumulative_conf +
// entity_density, where the three terms are derived by joining active
// hypotheses' triple_ids to a paper's triples via its IngestionSource's
// source_ref = "paper:{id}".
func RecomputeImpactScores(ctx context.Context, st *store.Store, jobID int64, confidenceNormalizationFactor float64) error {
	evidence, err := st.ListJobPaperEvidence(ctx, jobID)
	if err != nil {
		return fmt.Errorf("listing job paper evidence for job %d: %w", jobID, err)
	}
	if len(evidence) == 0 {
		return nil
	}

	hypotheses, err := st.ListActiveHypotheses(ctx, jobID)
	if err != nil {
		return fmt.Errorf("listing active hypotheses for job %d: %w", jobID, err)
	}
	triples, err := st.ListTriples(ctx, jobID)
	if err != nil {
		return fmt.Errorf("listing triples for job %d: %w", jobID, err)
	}
	sources, err := st.ListIngestionSourcesByRefPrefix(ctx, jobID, paperSourceRefPrefix)
	if err != nil {
		return fmt.Errorf("listing paper ingestion sources for job %d: %w", jobID, err)
	}

	sourceIDByPaperID := make(map[string]string, len(sources))
	for _, src := range sources {
		paperID := strings.TrimPrefix(src.SourceRef, paperSourceRefPrefix)
		sourceIDByPaperID[paperID] = src.ID
	}

	tripleIDsBySourceID := make(map[string][]string)
	for _, t := range triples {
		tripleIDsBySourceID[t.IngestionSourceID] = append(tripleIDsBySourceID[t.IngestionSourceID], t.ID)
	}

	if confidenceNormalizationFactor <= 0 {
		confidenceNormalizationFactor = 10
	}

	for _, e := range evidence {
		sourceID, ok := sourceIDByPaperID[e.PaperID]
		if !ok {
			continue
		}
		tripleIDs := tripleIDsBySourceID[sourceID]
		if len(tripleIDs) == 0 {
			continue
		}
		tripleIDSet := make(map[string]bool, len(tripleIDs))
		for _, id := range tripleIDs {
			tripleIDSet[id] = true
		}

		var hypoRefCount float64
		var cumulativeConf float64
		entities := make(map[string]bool)
		for _, h := range hypotheses {
			if !referencesAnyTriple(h.TripleIDs, tripleIDSet) {
				continue
			}
			hypoRefCount++
			cumulativeConf += float64(h.Confidence) / confidenceNormalizationFactor
			entities[strings.ToLower(h.Source)] = true
			entities[strings.ToLower(h.Target)] = true
		}

		entityDensity := float64(len(entities)) / float64(len(tripleIDs))
		impactScore := hypoRefCount + cumulativeConf + entityDensity

		if err := st.UpdateJobPaperEvidence(ctx, e.ID, impactScore, hypoRefCount, cumulativeConf, entityDensity); err != nil {
			return fmt.Errorf("updating impact score for evidence %s: %w", e.ID, err)
		}
	}
	return nil
}

func referencesAnyTriple(tripleIDs []string, tripleIDSet map[string]bool) bool {
	for _, id := range tripleIDs {
		if tripleIDSet[id] {
			return true
		}
	}
	return false
}
