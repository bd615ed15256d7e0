package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// CreateDecisionResult appends one decision cycle snapshot. Append-only:
// rows are never updated or deleted, and CreatedAt is strictly monotone
// per job, which is what C10's attribution window relies on.
func (s *Store) CreateDecisionResult(ctx context.Context, d model.DecisionResult) (*model.DecisionResult, error) {
	d.ID = uuid.NewString()
	snapshot, err := json.Marshal(d.MeasurementsSnapshot)
	if err != nil {
		return nil, fmt.Errorf("marshaling measurements snapshot: %w", err)
	}

	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO decision_results (decision_result_id, job_id, decision_label, provider_used, measurements_snapshot, fallback_used, fallback_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING decision_result_id, job_id, decision_label, provider_used, measurements_snapshot, fallback_used, fallback_reason, created_at
	`, d.ID, d.JobID, d.DecisionLabel, d.ProviderUsed, snapshot, d.FallbackUsed, d.FallbackReason)

	return scanDecisionResult(row)
}

// ListDecisionResults returns a job's decision history in chronological
// order, the sequence C6/C10 walk pairwise.
func (s *Store) ListDecisionResults(ctx context.Context, jobID int64) ([]*model.DecisionResult, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT decision_result_id, job_id, decision_label, provider_used, measurements_snapshot, fallback_used, fallback_reason, created_at
		FROM decision_results WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing decision results: %w", err)
	}
	defer rows.Close()

	var out []*model.DecisionResult
	for rows.Next() {
		d, err := scanDecisionResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LatestDecisionResult returns the most recent decision for a job, or
// ErrNotFound if none has been made yet.
func (s *Store) LatestDecisionResult(ctx context.Context, jobID int64) (*model.DecisionResult, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT decision_result_id, job_id, decision_label, provider_used, measurements_snapshot, fallback_used, fallback_reason, created_at
		FROM decision_results WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1
	`, jobID)
	return scanDecisionResult(row)
}

func scanDecisionResult(row *sql.Row) (*model.DecisionResult, error) {
	return scanDecisionResultInto(row)
}

func scanDecisionResultRow(rows *sql.Rows) (*model.DecisionResult, error) {
	return scanDecisionResultInto(rows)
}

func scanDecisionResultInto(sc scanner) (*model.DecisionResult, error) {
	var (
		d              model.DecisionResult
		snapshot       []byte
		fallbackReason sql.NullString
	)
	if err := sc.Scan(&d.ID, &d.JobID, &d.DecisionLabel, &d.ProviderUsed, &snapshot, &d.FallbackUsed, &fallbackReason, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning decision result: %w", err)
	}
	if err := json.Unmarshal(snapshot, &d.MeasurementsSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling measurements snapshot: %w", err)
	}
	d.FallbackReason = fallbackReason.String
	return &d, nil
}
