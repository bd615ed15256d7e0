package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// CreateIngestionSource records a new unit of text to ingest.
func (s *Store) CreateIngestionSource(ctx context.Context, src model.IngestionSource) (*model.IngestionSource, error) {
	src.ID = uuid.NewString()
	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO ingestion_sources (ingestion_source_id, job_id, source_type, source_ref, raw_text, processed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ingestion_source_id, job_id, source_type, source_ref, raw_text, processed, created_at
	`, src.ID, src.JobID, src.SourceType, src.SourceRef, src.RawText, src.Processed)

	var out model.IngestionSource
	if err := row.Scan(&out.ID, &out.JobID, &out.SourceType, &out.SourceRef, &out.RawText, &out.Processed, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting ingestion source: %w", err)
	}
	return &out, nil
}

// UpdateIngestionSourceRawText overwrites the canonical raw_text column,
// used once per source by the Ingest sub-stage after extraction/refinement
// and before slicing (§4.4: "no adapter, caller, or refinery may bypass
// this column").
func (s *Store) UpdateIngestionSourceRawText(ctx context.Context, id, rawText string) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE ingestion_sources SET raw_text = $1 WHERE ingestion_source_id = $2`, rawText, id)
	if err != nil {
		return fmt.Errorf("updating ingestion source raw text: %w", err)
	}
	return nil
}

// MarkIngestionSourceProcessed flips Processed once segmentation has run.
func (s *Store) MarkIngestionSourceProcessed(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE ingestion_sources SET processed = true WHERE ingestion_source_id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking ingestion source processed: %w", err)
	}
	return nil
}

// ListIngestionSourcesByRefPrefix returns every ingestion source of a job
// whose source_ref starts with prefix — used by the impact-scoring pass
// (§4.10) to resolve "paper:{id}" source rows back to their paper.
func (s *Store) ListIngestionSourcesByRefPrefix(ctx context.Context, jobID int64, prefix string) ([]*model.IngestionSource, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT ingestion_source_id, job_id, source_type, source_ref, raw_text, processed, created_at
		FROM ingestion_sources WHERE job_id = $1 AND source_ref LIKE $2 ORDER BY created_at ASC
	`, jobID, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("listing ingestion sources by ref prefix: %w", err)
	}
	defer rows.Close()

	var out []*model.IngestionSource
	for rows.Next() {
		var src model.IngestionSource
		if err := rows.Scan(&src.ID, &src.JobID, &src.SourceType, &src.SourceRef, &src.RawText, &src.Processed, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ingestion source: %w", err)
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// ListUnprocessedIngestionSources returns sources awaiting segmentation.
func (s *Store) ListUnprocessedIngestionSources(ctx context.Context, jobID int64) ([]*model.IngestionSource, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT ingestion_source_id, job_id, source_type, source_ref, raw_text, processed, created_at
		FROM ingestion_sources WHERE job_id = $1 AND processed = false ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed ingestion sources: %w", err)
	}
	defer rows.Close()

	var out []*model.IngestionSource
	for rows.Next() {
		var src model.IngestionSource
		if err := rows.Scan(&src.ID, &src.JobID, &src.SourceType, &src.SourceRef, &src.RawText, &src.Processed, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ingestion source: %w", err)
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// CreateTextBlocks inserts the segmentation output for one ingestion
// source in a single batch, preserving BlockOrder.
func (s *Store) CreateTextBlocks(ctx context.Context, blocks []model.TextBlock) ([]*model.TextBlock, error) {
	out := make([]*model.TextBlock, 0, len(blocks))
	for _, b := range blocks {
		b.ID = uuid.NewString()
		row := s.q(ctx).QueryRowContext(ctx, `
			INSERT INTO text_blocks (text_block_id, job_id, ingestion_source_id, block_text, block_order, segmentation_strategy, triples_extracted)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING text_block_id, job_id, ingestion_source_id, block_text, block_order, segmentation_strategy, triples_extracted
		`, b.ID, b.JobID, b.IngestionSourceID, b.BlockText, b.BlockOrder, b.SegmentationStrategy, b.TriplesExtracted)

		var tb model.TextBlock
		if err := row.Scan(&tb.ID, &tb.JobID, &tb.IngestionSourceID, &tb.BlockText, &tb.BlockOrder, &tb.SegmentationStrategy, &tb.TriplesExtracted); err != nil {
			return nil, fmt.Errorf("inserting text block: %w", err)
		}
		out = append(out, &tb)
	}
	return out, nil
}

// MarkTextBlockExtracted flips TriplesExtracted once extraction has run
// on this block.
func (s *Store) MarkTextBlockExtracted(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE text_blocks SET triples_extracted = true WHERE text_block_id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking text block extracted: %w", err)
	}
	return nil
}

// ListUnextractedTextBlocks returns blocks awaiting triple extraction,
// ordered for deterministic processing.
func (s *Store) ListUnextractedTextBlocks(ctx context.Context, jobID int64) ([]*model.TextBlock, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT text_block_id, job_id, ingestion_source_id, block_text, block_order, segmentation_strategy, triples_extracted
		FROM text_blocks WHERE job_id = $1 AND triples_extracted = false ORDER BY ingestion_source_id, block_order
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing unextracted text blocks: %w", err)
	}
	defer rows.Close()

	var out []*model.TextBlock
	for rows.Next() {
		var tb model.TextBlock
		if err := rows.Scan(&tb.ID, &tb.JobID, &tb.IngestionSourceID, &tb.BlockText, &tb.BlockOrder, &tb.SegmentationStrategy, &tb.TriplesExtracted); err != nil {
			return nil, fmt.Errorf("scanning text block: %w", err)
		}
		out = append(out, &tb)
	}
	return out, rows.Err()
}
