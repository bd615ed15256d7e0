package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// CreateFile records a physical artifact (upload or paper download).
func (s *Store) CreateFile(ctx context.Context, f model.File) (*model.File, error) {
	f.ID = uuid.NewString()
	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO files (file_id, job_id, paper_id, origin, stored_path, type, original_filename, extracted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING file_id, job_id, paper_id, origin, stored_path, type, original_filename, extracted, created_at
	`, f.ID, f.JobID, f.PaperID, f.Origin, f.StoredPath, f.Type, f.OriginalFilename, f.Extracted)

	var out model.File
	if err := row.Scan(&out.ID, &out.JobID, &out.PaperID, &out.Origin, &out.StoredPath, &out.Type, &out.OriginalFilename, &out.Extracted, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting file: %w", err)
	}
	return &out, nil
}

// GetFile looks up a single file by id.
func (s *Store) GetFile(ctx context.Context, id string) (*model.File, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT file_id, job_id, paper_id, origin, stored_path, type, original_filename, extracted, created_at
		FROM files WHERE file_id = $1
	`, id)

	var f model.File
	if err := row.Scan(&f.ID, &f.JobID, &f.PaperID, &f.Origin, &f.StoredPath, &f.Type, &f.OriginalFilename, &f.Extracted, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting file %s: %w", id, err)
	}
	return &f, nil
}

// MarkFileExtracted flips a file's Extracted flag once ingestion has
// produced an IngestionSource from it.
func (s *Store) MarkFileExtracted(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE files SET extracted = true WHERE file_id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking file extracted: %w", err)
	}
	return nil
}

// ListUnextractedFiles returns files awaiting extraction for a job.
func (s *Store) ListUnextractedFiles(ctx context.Context, jobID int64) ([]*model.File, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT file_id, job_id, paper_id, origin, stored_path, type, original_filename, extracted, created_at
		FROM files WHERE job_id = $1 AND extracted = false ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing unextracted files: %w", err)
	}
	defer rows.Close()

	var out []*model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.ID, &f.JobID, &f.PaperID, &f.Origin, &f.StoredPath, &f.Type, &f.OriginalFilename, &f.Extracted, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
