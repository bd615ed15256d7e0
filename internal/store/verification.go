package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// CreateVerificationResult records the outcome of a verification-mode job.
func (s *Store) CreateVerificationResult(ctx context.Context, v model.VerificationResult) (*model.VerificationResult, error) {
	v.ID = uuid.NewString()
	var path, supportingPapers []byte
	var err error
	if v.Path != nil {
		path, err = json.Marshal(v.Path)
		if err != nil {
			return nil, fmt.Errorf("marshaling path: %w", err)
		}
	}
	if v.SupportingPapers != nil {
		supportingPapers, err = json.Marshal(v.SupportingPapers)
		if err != nil {
			return nil, fmt.Errorf("marshaling supporting papers: %w", err)
		}
	}

	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO verification_results (verification_result_id, job_id, source, target, connection_found, connection_type, path, explanation, supporting_papers)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING verification_result_id, job_id, source, target, connection_found, connection_type, path, explanation, supporting_papers, created_at
	`, v.ID, v.JobID, v.Source, v.Target, v.ConnectionFound, nullableString(v.ConnectionType), path, nullableString(v.Explanation), supportingPapers)

	return scanVerificationResult(row)
}

// LoadVerificationResult returns the single verification result for a job.
func (s *Store) LoadVerificationResult(ctx context.Context, jobID int64) (*model.VerificationResult, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT verification_result_id, job_id, source, target, connection_found, connection_type, path, explanation, supporting_papers, created_at
		FROM verification_results WHERE job_id = $1
	`, jobID)
	return scanVerificationResult(row)
}

func scanVerificationResult(row *sql.Row) (*model.VerificationResult, error) {
	var (
		v                            model.VerificationResult
		connectionType, explanation  sql.NullString
		path, supportingPapers       []byte
	)
	if err := row.Scan(&v.ID, &v.JobID, &v.Source, &v.Target, &v.ConnectionFound, &connectionType, &path, &explanation, &supportingPapers, &v.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning verification result: %w", err)
	}
	v.ConnectionType = connectionType.String
	v.Explanation = explanation.String
	if len(path) > 0 {
		if err := json.Unmarshal(path, &v.Path); err != nil {
			return nil, fmt.Errorf("unmarshaling path: %w", err)
		}
	}
	if len(supportingPapers) > 0 {
		if err := json.Unmarshal(supportingPapers, &v.SupportingPapers); err != nil {
			return nil, fmt.Errorf("unmarshaling supporting papers: %w", err)
		}
	}
	return &v, nil
}
