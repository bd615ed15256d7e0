package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/model"
)

// CreateJob inserts a new job in CREATED status and returns the populated
// row (the database assigns the bigserial id and timestamps).
func (s *Store) CreateJob(ctx context.Context, req model.CreateJobRequest) (*model.Job, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling job config: %w", err)
	}

	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO jobs (user_id, mode, status, config)
		VALUES ($1, $2, $3, $4)
		RETURNING job_id, user_id, mode, status, config, terminal_result, created_at, updated_at, last_heartbeat_at
	`, req.UserID, req.Mode, model.StatusCreated, cfgJSON)

	return scanJob(row)
}

// LoadJob fetches a job by id. Returns ErrNotFound if no such job exists.
func (s *Store) LoadJob(ctx context.Context, id int64) (*model.Job, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT job_id, user_id, mode, status, config, terminal_result, created_at, updated_at, last_heartbeat_at
		FROM jobs WHERE job_id = $1
	`, id)
	return scanJob(row)
}

// UpdateStatus performs the compare-and-swap stage transition central to
// C1: the update only applies if the row's current status still matches
// expectedOld, serializing concurrent dispatch attempts on the same job.
// Grounded on the teacher's claimNextSession FOR UPDATE SKIP LOCKED +
// status-guarded UPDATE idiom (pkg/queue/worker.go), adapted to plain SQL.
func (s *Store) UpdateStatus(ctx context.Context, id int64, expectedOld, newStatus model.Status) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE jobs SET status = $1, updated_at = now()
		WHERE job_id = $2 AND status = $3
	`, newStatus, id, expectedOld)
	if err != nil {
		return false, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

// SetTerminalResult records the final payload for a job alongside its
// (already terminal) status; called once by the handler that drives a job
// into a terminal state.
func (s *Store) SetTerminalResult(ctx context.Context, id int64, result map[string]any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling terminal result: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		UPDATE jobs SET terminal_result = $1, updated_at = now() WHERE job_id = $2
	`, data, id)
	if err != nil {
		return fmt.Errorf("setting terminal result: %w", err)
	}
	return nil
}

// Heartbeat stamps last_heartbeat_at for orphan detection by the worker
// pool's heartbeat goroutine.
func (s *Store) Heartbeat(ctx context.Context, id int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE jobs SET last_heartbeat_at = now() WHERE job_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	return nil
}

// CountActiveJobs returns the number of jobs currently claimed in the
// work queue, used by the worker pool's best-effort global concurrency
// cap (racy across pods, bounded by poll jitter, same tradeoff the
// teacher accepts in Worker.pollAndProcess).
func (s *Store) CountActiveJobs(ctx context.Context) (int, error) {
	var n int
	row := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM job_queue WHERE claimed_by IS NOT NULL`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting active jobs: %w", err)
	}
	return n, nil
}

// ListJobs returns jobs matching the given filters, most recent first.
func (s *Store) ListJobs(ctx context.Context, f model.JobFilters) ([]*model.Job, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT job_id, user_id, mode, status, config, terminal_result, created_at, updated_at, last_heartbeat_at FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (*model.Job, error) {
	return scanJobInto(row)
}

func scanJobRow(rows *sql.Rows) (*model.Job, error) {
	return scanJobInto(rows)
}

func scanJobInto(sc scanner) (*model.Job, error) {
	var (
		j              model.Job
		cfgJSON        []byte
		terminalJSON   []byte
	)
	if err := sc.Scan(&j.ID, &j.UserID, &j.Mode, &j.Status, &cfgJSON, &terminalJSON, &j.CreatedAt, &j.UpdatedAt, &j.LastHeartbeatAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	if len(cfgJSON) > 0 {
		if err := json.Unmarshal(cfgJSON, &j.Config); err != nil {
			return nil, fmt.Errorf("unmarshaling job config: %w", err)
		}
	}
	if len(terminalJSON) > 0 {
		if err := json.Unmarshal(terminalJSON, &j.TerminalResult); err != nil {
			return nil, fmt.Errorf("unmarshaling terminal result: %w", err)
		}
	}
	return &j, nil
}
