package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// CreateTriples batch-inserts extracted triples for one text block.
// Triples are immutable once written.
func (s *Store) CreateTriples(ctx context.Context, triples []model.Triple) ([]*model.Triple, error) {
	out := make([]*model.Triple, 0, len(triples))
	for _, t := range triples {
		t.ID = uuid.NewString()
		row := s.q(ctx).QueryRowContext(ctx, `
			INSERT INTO triples (triple_id, job_id, block_id, ingestion_source_id, subject, predicate, object, extractor_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING triple_id, job_id, block_id, ingestion_source_id, subject, predicate, object, extractor_name, created_at
		`, t.ID, t.JobID, t.BlockID, t.IngestionSourceID, t.Subject, t.Predicate, t.Object, t.ExtractorName)

		var out1 model.Triple
		if err := row.Scan(&out1.ID, &out1.JobID, &out1.BlockID, &out1.IngestionSourceID, &out1.Subject, &out1.Predicate, &out1.Object, &out1.ExtractorName, &out1.CreatedAt); err != nil {
			return nil, fmt.Errorf("inserting triple: %w", err)
		}
		out = append(out, &out1)
	}
	return out, nil
}

// ListTriples returns every triple extracted for a job, the input to the
// structural graph build stage.
func (s *Store) ListTriples(ctx context.Context, jobID int64) ([]*model.Triple, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT triple_id, job_id, block_id, ingestion_source_id, subject, predicate, object, extractor_name, created_at
		FROM triples WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing triples: %w", err)
	}
	defer rows.Close()

	var out []*model.Triple
	for rows.Next() {
		var t model.Triple
		if err := rows.Scan(&t.ID, &t.JobID, &t.BlockID, &t.IngestionSourceID, &t.Subject, &t.Predicate, &t.Object, &t.ExtractorName, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning triple: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
