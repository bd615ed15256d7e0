package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/litreview/engine/internal/model"
)

// Enqueue adds a job to the FIFO work queue. Called once per job creation
// and again whenever a handler re-enqueues a job for another dispatch
// pass (C3).
func (s *Store) Enqueue(ctx context.Context, jobID int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO job_queue (job_id) VALUES ($1)
		ON CONFLICT (job_id) DO UPDATE SET enqueued_at = now(), claimed_by = NULL, claimed_at = NULL
	`, jobID)
	if err != nil {
		return fmt.Errorf("enqueuing job: %w", err)
	}
	return nil
}

// Claim atomically claims the oldest unclaimed job for the given worker
// id, using SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never
// contend for the same row. Grounded on the teacher's claimNextSession
// (pkg/queue/worker.go), adapted from ent's query builder to plain SQL.
// Returns (nil, false, nil) when the queue is empty.
func (s *Store) Claim(ctx context.Context, workerID string) (*model.Job, bool, error) {
	var job *model.Job
	found := false
	err := s.Transactionally(ctx, func(ctx context.Context) error {
		var jobID int64
		row := s.q(ctx).QueryRowContext(ctx, `
			SELECT job_id FROM job_queue
			WHERE claimed_by IS NULL
			ORDER BY enqueued_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`)
		if err := row.Scan(&jobID); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return fmt.Errorf("selecting queue head: %w", err)
		}

		if _, err := s.q(ctx).ExecContext(ctx, `
			UPDATE job_queue SET claimed_by = $1, claimed_at = now() WHERE job_id = $2
		`, workerID, jobID); err != nil {
			return fmt.Errorf("claiming job: %w", err)
		}

		j, err := s.LoadJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("loading claimed job: %w", err)
		}
		job = j
		found = true
		return nil
	})
	return job, found, err
}

// Dequeue removes a job's queue entry once the dispatcher has finished
// processing it (whether it reached a terminal status or was
// re-enqueued via Enqueue for another pass).
func (s *Store) Dequeue(ctx context.Context, jobID int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM job_queue WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("dequeuing job: %w", err)
	}
	return nil
}

// ReleaseStaleClaims clears claimed_by for jobs whose claiming worker
// has gone silent, identified by the job's own last_heartbeat_at falling
// behind the given staleness threshold. Used by the heartbeat-driven
// orphan-detection goroutine (C2).
func (s *Store) ReleaseStaleClaims(ctx context.Context, staleBefore time.Time) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE job_queue SET claimed_by = NULL, claimed_at = NULL
		WHERE claimed_by IS NOT NULL
		AND job_id IN (
			SELECT job_id FROM jobs WHERE last_heartbeat_at IS NULL OR last_heartbeat_at < $1
		)
	`, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("releasing stale claims: %w", err)
	}
	return res.RowsAffected()
}
