package dispatcher

import (
	"context"
	"fmt"

	"github.com/litreview/engine/internal/ingestion"
	"github.com/litreview/engine/internal/model"
)

// stageCreated drains every unextracted uploaded file's text regions
// into raw IngestionSource rows, then advances the job to
// READY_TO_INGEST so the next poll starts the Ingest sub-stage.
func stageCreated(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	n, err := ingestion.ExtractStage(ctx, d.store, job.ID, d.policy.Extraction)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage created: %w", err)
	}
	d.publishProgress(ctx, job.ID, "extract", "completed", fmt.Sprintf("%d files extracted", n))
	return stageResult{next: model.StatusReadyToIngest, reenqueue: true}, nil
}

// stageReadyToIngest refines and slices every unprocessed ingestion
// source into text blocks, then advances to INGESTED.
func stageReadyToIngest(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	sources, blocks, err := ingestion.IngestStage(ctx, d.store, job.ID, d.llm, d.policy.Extraction, d.policy.Refinement, d.policy.Slicing)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage ready_to_ingest: %w", err)
	}
	d.publishProgress(ctx, job.ID, "ingest", "completed", fmt.Sprintf("%d sources, %d blocks", sources, blocks))
	return stageResult{next: model.StatusIngested, reenqueue: true}, nil
}

// stageIngested extracts triples out of every unprocessed text block,
// then advances to TRIPLES_EXTRACTED.
func stageIngested(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error) {
	blocks, triples, err := ingestion.TripleExtractionStage(ctx, d.store, job.ID, d.llm)
	if err != nil {
		return stageResult{}, fmt.Errorf("stage ingested: %w", err)
	}
	d.publishProgress(ctx, job.ID, "triple_extraction", "completed", fmt.Sprintf("%d blocks, %d triples", blocks, triples))
	return stageResult{next: model.StatusTriplesExtracted, reenqueue: true}, nil
}
