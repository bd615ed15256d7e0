package dispatcher

import (
	"context"
	"fmt"

	"github.com/litreview/engine/internal/graph"
	"github.com/litreview/engine/internal/model"
)

// stageTriplesExtracted projects every extracted triple into a
// structural graph and caches it for the next stage to sanitize,
// advancing to STRUCTURAL_GRAPH_BUILT.
func stageTriplesExtracted(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	triples, err := d.store.ListTriples(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage triples_extracted: listing triples: %w", err)
	}
	g, err := graph.BuildStructuralCached(ctx, d.cache, job.ID, triples)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage triples_extracted: %w", err)
	}
	d.publishProgress(ctx, job.ID, "build_structural", "completed", fmt.Sprintf("%d nodes, %d edges", len(g.Nodes), len(g.Edges)))
	return stageResult{next: model.StatusStructuralGraphBuilt, reenqueue: true}, nil
}

// stageStructuralGraphBuilt sanitizes the cached structural graph and
// persists it as the job's first active SemanticGraph version, advancing
// to GRAPH_SANITIZED. A missing cache entry (e.g. the Redis TTL expired
// before this stage ran) surfaces as an error wrapping
// stageerr.ErrPreconditionFailed and fails the job, per the generic
// dispatch pseudocode's precondition-violation handling.
func stageStructuralGraphBuilt(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	result, err := graph.SanitizeFromCache(ctx, d.cache, job.ID, d.policy.GraphRules)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage structural_graph_built: %w", err)
	}
	if _, err := d.store.PutActiveSemanticGraph(ctx, job.ID, result.Graph); err != nil {
		return stageResult{}, fmt.Errorf("stage structural_graph_built: persisting sanitized graph: %w", err)
	}
	d.publishProgress(ctx, job.ID, "sanitize", "completed", fmt.Sprintf("%d nodes removed", len(result.RemovedNodes)))
	return stageResult{next: model.StatusGraphSanitized, reenqueue: true}, nil
}

// stageGraphSanitized loads the sanitized graph back from its persisted
// SemanticGraph row (there is no Redis slot for it — the versioned store
// table is the handoff), semantically merges duplicate concept nodes,
// and persists the merged graph as a new active version, advancing to
// GRAPH_SEMANTIC_MERGED.
func stageGraphSanitized(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	active, err := d.store.LoadActiveSemanticGraph(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage graph_sanitized: loading active graph: %w", err)
	}
	merged, summary, err := graph.MergeSemantic(ctx, d.cache, d.embedder, active.Graph, d.policy.GraphMerging.SimilarityThreshold)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage graph_sanitized: %w", err)
	}
	if _, err := d.store.PutActiveSemanticGraph(ctx, job.ID, merged); err != nil {
		return stageResult{}, fmt.Errorf("stage graph_sanitized: persisting merged graph: %w", err)
	}
	d.publishProgress(ctx, job.ID, "merge_semantic", "completed", fmt.Sprintf("%d clusters formed, %d nodes merged", summary.ClustersFormed, summary.NodesMerged))
	return stageResult{next: model.StatusGraphSemanticMerged, reenqueue: true}, nil
}
