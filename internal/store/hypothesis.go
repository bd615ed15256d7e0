package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// ReplaceActiveHypotheses deletes the job's current active hypothesis
// set and inserts the given set as the new active version, matching the
// "previous active set is deleted and replaced; only one active set
// exists at a time" rule in internal/model.Hypothesis's doc comment.
func (s *Store) ReplaceActiveHypotheses(ctx context.Context, jobID int64, hyps []model.Hypothesis) ([]*model.Hypothesis, error) {
	var out []*model.Hypothesis
	err := s.Transactionally(ctx, func(ctx context.Context) error {
		var nextVersion int
		row := s.q(ctx).QueryRowContext(ctx, `
			SELECT COALESCE(MAX(version), 0) FROM hypotheses WHERE job_id = $1
		`, jobID)
		if err := row.Scan(&nextVersion); err != nil {
			return fmt.Errorf("reading current hypothesis version: %w", err)
		}
		nextVersion++

		if _, err := s.q(ctx).ExecContext(ctx, `
			DELETE FROM hypotheses WHERE job_id = $1 AND is_active = true
		`, jobID); err != nil {
			return fmt.Errorf("deleting prior hypotheses: %w", err)
		}

		for _, h := range hyps {
			h.ID = uuid.NewString()
			h.JobID = jobID
			h.Version = nextVersion
			h.IsActive = true

			path, err := json.Marshal(h.Path)
			if err != nil {
				return fmt.Errorf("marshaling hypothesis path: %w", err)
			}
			predicates, err := json.Marshal(h.Predicates)
			if err != nil {
				return fmt.Errorf("marshaling hypothesis predicates: %w", err)
			}
			var filterReason []byte
			if h.FilterReason != nil {
				filterReason, err = json.Marshal(h.FilterReason)
				if err != nil {
					return fmt.Errorf("marshaling filter reason: %w", err)
				}
			}
			tripleIDs, err := json.Marshal(h.TripleIDs)
			if err != nil {
				return fmt.Errorf("marshaling triple ids: %w", err)
			}
			sourceIDs, err := json.Marshal(h.SourceIDs)
			if err != nil {
				return fmt.Errorf("marshaling source ids: %w", err)
			}
			blockIDs, err := json.Marshal(h.BlockIDs)
			if err != nil {
				return fmt.Errorf("marshaling block ids: %w", err)
			}

			if _, err := s.q(ctx).ExecContext(ctx, `
				INSERT INTO hypotheses (
					hypothesis_id, job_id, source, target, path, predicates, explanation,
					confidence, mode, passed_filter, filter_reason, triple_ids, source_ids,
					block_ids, domain, is_active, version
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			`, h.ID, h.JobID, h.Source, h.Target, path, predicates, h.Explanation,
				h.Confidence, h.Mode, h.PassedFilter, filterReason, tripleIDs, sourceIDs,
				blockIDs, nullableString(h.Domain), h.IsActive, h.Version,
			); err != nil {
				return fmt.Errorf("inserting hypothesis: %w", err)
			}
			out = append(out, &h)
		}
		return nil
	})
	return out, err
}

// ListActiveHypotheses returns the job's current active hypothesis set.
func (s *Store) ListActiveHypotheses(ctx context.Context, jobID int64) ([]*model.Hypothesis, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT hypothesis_id, job_id, source, target, path, predicates, explanation,
			confidence, mode, passed_filter, filter_reason, triple_ids, source_ids,
			block_ids, domain, is_active, version, created_at
		FROM hypotheses WHERE job_id = $1 AND is_active = true
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing active hypotheses: %w", err)
	}
	defer rows.Close()

	var out []*model.Hypothesis
	for rows.Next() {
		h, err := scanHypothesis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHypothesis(rows *sql.Rows) (*model.Hypothesis, error) {
	var (
		h                                             model.Hypothesis
		path, predicates, filterReason                []byte
		tripleIDs, sourceIDs, blockIDs                 []byte
		domain                                         sql.NullString
	)
	if err := rows.Scan(&h.ID, &h.JobID, &h.Source, &h.Target, &path, &predicates, &h.Explanation,
		&h.Confidence, &h.Mode, &h.PassedFilter, &filterReason, &tripleIDs, &sourceIDs,
		&blockIDs, &domain, &h.IsActive, &h.Version, &h.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning hypothesis: %w", err)
	}
	if err := json.Unmarshal(path, &h.Path); err != nil {
		return nil, fmt.Errorf("unmarshaling hypothesis path: %w", err)
	}
	if err := json.Unmarshal(predicates, &h.Predicates); err != nil {
		return nil, fmt.Errorf("unmarshaling hypothesis predicates: %w", err)
	}
	if len(filterReason) > 0 {
		if err := json.Unmarshal(filterReason, &h.FilterReason); err != nil {
			return nil, fmt.Errorf("unmarshaling filter reason: %w", err)
		}
	}
	if err := json.Unmarshal(tripleIDs, &h.TripleIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling triple ids: %w", err)
	}
	if err := json.Unmarshal(sourceIDs, &h.SourceIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling source ids: %w", err)
	}
	if err := json.Unmarshal(blockIDs, &h.BlockIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling block ids: %w", err)
	}
	h.Domain = domain.String
	return &h, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
