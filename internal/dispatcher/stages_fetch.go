package dispatcher

import (
	"context"
	"fmt"

	"github.com/litreview/engine/internal/events"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/query"
)

func paperFoundPayload(jobID int64, p *model.Paper) events.PaperFoundPayload {
	return events.PaperFoundPayload{Type: "paper.found", JobID: jobID, PaperID: p.ID, Title: p.Title}
}

// stageFetchQueued runs the Search-Query Orchestrator's execute_fetch_more
// over the job's active hypotheses, links every newly accepted paper into
// the job's strategic ledger, and loops back to READY_TO_INGEST — the
// only backward transition besides DOWNLOAD_QUEUED's — so the freshly
// ingested abstracts flow through extraction again.
func stageFetchQueued(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	hyps, err := d.store.ListActiveHypotheses(ctx, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage fetch_queued: listing active hypotheses: %w", err)
	}
	hypValues := make([]model.Hypothesis, len(hyps))
	for i, h := range hyps {
		hypValues[i] = *h
	}

	results, err := query.ExecuteFetchMore(ctx, d.store, d.llm, d.router, job.ID, hypValues, d.policy.QueryOrchestrator, d.policy.DomainResolver)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage fetch_queued: %w", err)
	}

	for _, r := range results {
		for _, p := range r.NewPapers {
			if _, err := d.store.CreateJobPaperEvidence(ctx, model.JobPaperEvidence{
				JobID:   job.ID,
				PaperID: p.ID,
				RunID:   r.Run.ID,
			}); err != nil {
				return stageResult{}, fmt.Errorf("stage fetch_queued: linking paper %s: %w", p.ID, err)
			}
			if d.events != nil {
				_ = d.events.PublishPaperFound(ctx, job.ID, paperFoundPayload(job.ID, p))
			}
		}
	}

	d.publishProgress(ctx, job.ID, "fetch_more", "completed", fmt.Sprintf("%d leads processed", len(results)))
	return stageResult{next: model.StatusReadyToIngest, reenqueue: true}, nil
}

// stageDownloadQueued runs the Strategic Paper Downloader over the job's
// unevaluated ledger entries and loops back to READY_TO_INGEST so the
// newly registered full-text IngestionSource rows get extracted.
func stageDownloadQueued(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	n, err := d.downloader.ProcessJobDownloads(ctx, d.store, job.ID)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage download_queued: %w", err)
	}
	d.publishProgress(ctx, job.ID, "strategic_download", "completed", fmt.Sprintf("%d papers downloaded", n))
	return stageResult{next: model.StatusReadyToIngest, reenqueue: true}, nil
}
