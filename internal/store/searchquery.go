package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// GetOrCreateSearchQuery returns the existing SearchQuery for
// (jobID, signature) if one exists, otherwise creates it in "new" status.
// This is the stable-intent-record lookup at the heart of C9's reuse
// logic (hypothesis_signature uniquely identifies the (source, target)
// endpoint pair regardless of path or explanation wording).
func (s *Store) GetOrCreateSearchQuery(ctx context.Context, jobID int64, signature, queryText string, configSnapshot map[string]any) (*model.SearchQuery, error) {
	var out *model.SearchQuery
	err := s.Transactionally(ctx, func(ctx context.Context) error {
		existing, err := s.FindSearchQuery(ctx, jobID, signature)
		if err == nil {
			out = existing
			return nil
		}
		if err != ErrNotFound {
			return err
		}

		cfgJSON, err := json.Marshal(configSnapshot)
		if err != nil {
			return fmt.Errorf("marshaling config snapshot: %w", err)
		}
		id := uuid.NewString()
		row := s.q(ctx).QueryRowContext(ctx, `
			INSERT INTO search_queries (search_query_id, job_id, hypothesis_signature, query_text, status, reputation_score, config_snapshot)
			VALUES ($1, $2, $3, $4, $5, 0, $6)
			RETURNING search_query_id, job_id, hypothesis_signature, query_text, resolved_domain, domain_resolution_method, status, reputation_score, config_snapshot, created_at, updated_at
		`, id, jobID, signature, queryText, model.SearchQueryNew, cfgJSON)

		sq, err := scanSearchQuery(row)
		if err != nil {
			return err
		}
		out = sq
		return nil
	})
	return out, err
}

// FindSearchQuery looks up a SearchQuery by its unique (job, signature) key.
func (s *Store) FindSearchQuery(ctx context.Context, jobID int64, signature string) (*model.SearchQuery, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT search_query_id, job_id, hypothesis_signature, query_text, resolved_domain, domain_resolution_method, status, reputation_score, config_snapshot, created_at, updated_at
		FROM search_queries WHERE job_id = $1 AND hypothesis_signature = $2
	`, jobID, signature)
	return scanSearchQuery(row)
}

// SetSearchQueryDomain records the resolved domain and how it was resolved.
func (s *Store) SetSearchQueryDomain(ctx context.Context, id, domain, method string) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE search_queries SET resolved_domain = $1, domain_resolution_method = $2, updated_at = now() WHERE search_query_id = $3
	`, domain, method, id)
	if err != nil {
		return fmt.Errorf("setting search query domain: %w", err)
	}
	return nil
}

// SetSearchQueryStatus transitions a SearchQuery's reuse lifecycle state.
func (s *Store) SetSearchQueryStatus(ctx context.Context, id string, status model.SearchQueryStatus) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE search_queries SET status = $1, updated_at = now() WHERE search_query_id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("setting search query status: %w", err)
	}
	return nil
}

// ApplyReputationDelta adds delta to a SearchQuery's reputation score.
// Uncapped per the Open Question #4 resolution (DESIGN.md): every
// classified signal delta applies regardless of current score.
func (s *Store) ApplyReputationDelta(ctx context.Context, id string, delta int) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE search_queries SET reputation_score = reputation_score + $1, updated_at = now() WHERE search_query_id = $2
	`, delta, id)
	if err != nil {
		return fmt.Errorf("applying reputation delta: %w", err)
	}
	return nil
}

// ListSearchQueriesByStatus returns a job's search queries in a given
// reuse-lifecycle status.
func (s *Store) ListSearchQueriesByStatus(ctx context.Context, jobID int64, status model.SearchQueryStatus) ([]*model.SearchQuery, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT search_query_id, job_id, hypothesis_signature, query_text, resolved_domain, domain_resolution_method, status, reputation_score, config_snapshot, created_at, updated_at
		FROM search_queries WHERE job_id = $1 AND status = $2
	`, jobID, status)
	if err != nil {
		return nil, fmt.Errorf("listing search queries: %w", err)
	}
	defer rows.Close()

	var out []*model.SearchQuery
	for rows.Next() {
		sq, err := scanSearchQueryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	return out, rows.Err()
}

func scanSearchQuery(row *sql.Row) (*model.SearchQuery, error) {
	return scanSearchQueryInto(row)
}

func scanSearchQueryRow(rows *sql.Rows) (*model.SearchQuery, error) {
	return scanSearchQueryInto(rows)
}

func scanSearchQueryInto(sc scanner) (*model.SearchQuery, error) {
	var (
		sq             model.SearchQuery
		resolvedDomain sql.NullString
		resolutionMethod sql.NullString
		cfgRaw         []byte
	)
	if err := sc.Scan(&sq.ID, &sq.JobID, &sq.HypothesisSignature, &sq.QueryText, &resolvedDomain, &resolutionMethod, &sq.Status, &sq.ReputationScore, &cfgRaw, &sq.CreatedAt, &sq.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning search query: %w", err)
	}
	sq.ResolvedDomain = resolvedDomain.String
	sq.DomainResolutionMethod = resolutionMethod.String
	if len(cfgRaw) > 0 {
		if err := json.Unmarshal(cfgRaw, &sq.ConfigSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshaling config snapshot: %w", err)
		}
	}
	return &sq, nil
}

// CreateSearchQueryRun records one fetch-cycle execution against a
// SearchQuery. SignalDelta starts nil; SetRunSignalDelta fills it once
// the next DecisionResult attributes a delta to it (C10).
func (s *Store) CreateSearchQueryRun(ctx context.Context, run model.SearchQueryRun) (*model.SearchQueryRun, error) {
	run.ID = uuid.NewString()
	fetched, err := json.Marshal(run.FetchedPaperIDs)
	if err != nil {
		return nil, fmt.Errorf("marshaling fetched paper ids: %w", err)
	}
	accepted, err := json.Marshal(run.AcceptedPaperIDs)
	if err != nil {
		return nil, fmt.Errorf("marshaling accepted paper ids: %w", err)
	}
	rejected, err := json.Marshal(run.RejectedPaperIDs)
	if err != nil {
		return nil, fmt.Errorf("marshaling rejected paper ids: %w", err)
	}

	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO search_query_runs (search_query_run_id, search_query_id, job_id, provider_used, reason, fetched_paper_ids, accepted_paper_ids, rejected_paper_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING search_query_run_id, search_query_id, job_id, provider_used, reason, fetched_paper_ids, accepted_paper_ids, rejected_paper_ids, signal_delta, created_at
	`, run.ID, run.SearchQueryID, run.JobID, run.ProviderUsed, run.Reason, fetched, accepted, rejected)

	return scanSearchQueryRun(row)
}

// ListSearchQueryRunsByJob returns every run recorded for a job, ordered
// by creation — used to compute the "seen paper ids" union before a
// fetch cycle (§4.9's execute_fetch_more step 2).
func (s *Store) ListSearchQueryRunsByJob(ctx context.Context, jobID int64) ([]*model.SearchQueryRun, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT search_query_run_id, search_query_id, job_id, provider_used, reason, fetched_paper_ids, accepted_paper_ids, rejected_paper_ids, signal_delta, created_at
		FROM search_query_runs WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing search query runs: %w", err)
	}
	defer rows.Close()

	var out []*model.SearchQueryRun
	for rows.Next() {
		run, err := scanSearchQueryRunRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListUnattributedSearchQueryRuns returns runs in a job whose SignalDelta
// has not yet been set, ordered by creation — the attribution window C10
// walks between consecutive DecisionResults.
func (s *Store) ListUnattributedSearchQueryRuns(ctx context.Context, jobID int64) ([]*model.SearchQueryRun, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT search_query_run_id, search_query_id, job_id, provider_used, reason, fetched_paper_ids, accepted_paper_ids, rejected_paper_ids, signal_delta, created_at
		FROM search_query_runs WHERE job_id = $1 AND signal_delta IS NULL ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing unattributed search query runs: %w", err)
	}
	defer rows.Close()

	var out []*model.SearchQueryRun
	for rows.Next() {
		run, err := scanSearchQueryRunRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// SetRunSignalDelta records the classified reputation delta attributed
// to one run. Idempotent: only ever written once per run.
func (s *Store) SetRunSignalDelta(ctx context.Context, runID string, delta int) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE search_query_runs SET signal_delta = $1 WHERE search_query_run_id = $2 AND signal_delta IS NULL
	`, delta, runID)
	if err != nil {
		return fmt.Errorf("setting run signal delta: %w", err)
	}
	return nil
}

func scanSearchQueryRun(row *sql.Row) (*model.SearchQueryRun, error) {
	return scanSearchQueryRunInto(row)
}

func scanSearchQueryRunRow(rows *sql.Rows) (*model.SearchQueryRun, error) {
	return scanSearchQueryRunInto(rows)
}

func scanSearchQueryRunInto(sc scanner) (*model.SearchQueryRun, error) {
	var (
		run                                    model.SearchQueryRun
		fetched, accepted, rejected             []byte
		signalDelta                             sql.NullInt64
	)
	if err := sc.Scan(&run.ID, &run.SearchQueryID, &run.JobID, &run.ProviderUsed, &run.Reason, &fetched, &accepted, &rejected, &signalDelta, &run.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning search query run: %w", err)
	}
	if err := json.Unmarshal(fetched, &run.FetchedPaperIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling fetched paper ids: %w", err)
	}
	if err := json.Unmarshal(accepted, &run.AcceptedPaperIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling accepted paper ids: %w", err)
	}
	if err := json.Unmarshal(rejected, &run.RejectedPaperIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling rejected paper ids: %w", err)
	}
	if signalDelta.Valid {
		d := int(signalDelta.Int64)
		run.SignalDelta = &d
	}
	return &run, nil
}
