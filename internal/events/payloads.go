package events

import "github.com/litreview/engine/internal/model"

// JobStatusPayload announces a job's stage transition.
type JobStatusPayload struct {
	Type      string       `json:"type"`
	JobID     int64        `json:"job_id"`
	Status    model.Status `json:"status"`
	UpdatedAt string       `json:"updated_at"`
}

// StageProgressPayload reports a sub-stage's start/completion within the
// current status (e.g. "extracting triples", "building structural graph"),
// finer-grained than the job status transitions themselves.
type StageProgressPayload struct {
	Type   string `json:"type"`
	JobID  int64  `json:"job_id"`
	Stage  string `json:"stage"`
	State  string `json:"state"` // started | completed | failed
	Detail string `json:"detail,omitempty"`
}

// DecisionMadePayload announces a completed decision cycle.
type DecisionMadePayload struct {
	Type          string              `json:"type"`
	JobID         int64               `json:"job_id"`
	DecisionLabel model.DecisionLabel `json:"decision_label"`
	ProviderUsed  string              `json:"provider_used"`
}

// PaperFoundPayload announces a newly accepted paper for the job's
// strategic ledger.
type PaperFoundPayload struct {
	Type    string `json:"type"`
	JobID   int64  `json:"job_id"`
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
}

// MessageCreatedPayload mirrors a new conversation_messages row.
type MessageCreatedPayload struct {
	Type      string `json:"type"`
	JobID     int64  `json:"job_id"`
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// HeartbeatPayload is a transient liveness ping for a job's detail view.
type HeartbeatPayload struct {
	Type  string `json:"type"`
	JobID int64  `json:"job_id"`
}
