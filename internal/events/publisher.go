package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Publisher persists durable events and broadcasts them (and transient
// events) via pg_notify. Grounded on the teacher's EventPublisher.
type Publisher struct {
	db *sql.DB
}

// NewPublisher wraps the shared *sql.DB.
func NewPublisher(db *sql.DB) *Publisher {
	return &Publisher{db: db}
}

// PublishJobStatus persists and broadcasts a job.status event to both the
// job's own channel and the owning user's channel, so a job detail view
// and a jobs dashboard both stay live without separate subscriptions.
func (p *Publisher) PublishJobStatus(ctx context.Context, jobID int64, userID string, payload JobStatusPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling job status payload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, jobID, JobChannel(jobID), data); err != nil {
		slog.Warn("publishing job status to job channel failed", "job_id", jobID, "error", err)
		firstErr = err
	}
	if err := p.notifyOnly(ctx, UserChannel(userID), data); err != nil {
		slog.Warn("publishing job status to user channel failed", "job_id", jobID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishStageProgress persists and broadcasts a stage.progress event to
// a job's channel.
func (p *Publisher) PublishStageProgress(ctx context.Context, jobID int64, payload StageProgressPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling stage progress payload: %w", err)
	}
	return p.persistAndNotify(ctx, jobID, JobChannel(jobID), data)
}

// PublishDecisionMade persists and broadcasts a decision.made event.
func (p *Publisher) PublishDecisionMade(ctx context.Context, jobID int64, payload DecisionMadePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling decision made payload: %w", err)
	}
	return p.persistAndNotify(ctx, jobID, JobChannel(jobID), data)
}

// PublishPaperFound persists and broadcasts a paper.found event.
func (p *Publisher) PublishPaperFound(ctx context.Context, jobID int64, payload PaperFoundPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling paper found payload: %w", err)
	}
	return p.persistAndNotify(ctx, jobID, JobChannel(jobID), data)
}

// PublishMessageCreated persists and broadcasts a message.created event.
func (p *Publisher) PublishMessageCreated(ctx context.Context, jobID int64, payload MessageCreatedPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling message created payload: %w", err)
	}
	return p.persistAndNotify(ctx, jobID, JobChannel(jobID), data)
}

// PublishHeartbeat broadcasts a transient liveness ping, not persisted.
func (p *Publisher) PublishHeartbeat(ctx context.Context, jobID int64) error {
	data, err := json.Marshal(HeartbeatPayload{Type: EventTypeHeartbeat, JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshaling heartbeat payload: %w", err)
	}
	return p.notifyOnly(ctx, JobChannel(jobID), data)
}

// persistAndNotify inserts the event row and issues pg_notify within the
// same transaction — pg_notify is transactional and only fires on
// COMMIT, so a rolled-back publish never leaks a phantom notification.
func (p *Publisher) persistAndNotify(ctx context.Context, jobID int64, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning event transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO events (job_id, channel, payload) VALUES ($1, $2, $3) RETURNING id`,
		jobID, channel, payloadJSON,
	).Scan(&eventID); err != nil {
		return fmt.Errorf("persisting event: %w", err)
	}

	notifyPayload, err := injectEventID(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event transaction: %w", err)
	}
	return nil
}

// notifyOnly broadcasts without persisting — used for high-frequency or
// job-independent events that don't need catchup replay.
func (p *Publisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	payload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// injectEventID adds db_event_id to the payload for catchup tracking,
// then applies the PostgreSQL NOTIFY size limit.
func injectEventID(payloadJSON []byte, eventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("unmarshaling payload for event id injection: %w", err)
	}
	m["db_event_id"] = eventID
	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling enriched payload: %w", err)
	}
	return truncateIfNeeded(string(enriched))
}

// truncateIfNeeded keeps the NOTIFY payload under PostgreSQL's 8000-byte
// limit, falling back to a routing-only envelope when it doesn't fit —
// clients re-fetch the full event from the catchup query by db_event_id.
func truncateIfNeeded(payload string) (string, error) {
	if len(payload) <= 7900 {
		return payload, nil
	}
	var routing struct {
		Type      string `json:"type"`
		JobID     int64  `json:"job_id"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal([]byte(payload), &routing); err != nil {
		return "", fmt.Errorf("extracting routing fields for truncation: %w", err)
	}
	truncated := map[string]any{
		"type":      routing.Type,
		"job_id":    routing.JobID,
		"truncated": true,
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}
	data, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("marshaling truncated payload: %w", err)
	}
	return string(data), nil
}
