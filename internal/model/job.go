// Package model defines the plain Go structs backing the relational schema
// declared in ent/schema. There is no generated ent client in this module;
// these types are what internal/store reads and writes by hand.
package model

import "time"

// Status is a job's position in the stage state machine (wire-visible via
// the API and presentation events).
type Status string

const (
	StatusCreated               Status = "CREATED"
	StatusReadyToIngest         Status = "READY_TO_INGEST"
	StatusIngested              Status = "INGESTED"
	StatusTriplesExtracted      Status = "TRIPLES_EXTRACTED"
	StatusStructuralGraphBuilt  Status = "STRUCTURAL_GRAPH_BUILT"
	StatusGraphSanitized        Status = "GRAPH_SANITIZED"
	StatusGraphSemanticMerged   Status = "GRAPH_SEMANTIC_MERGED"
	StatusPathReasoningDone     Status = "PATH_REASONING_DONE"
	StatusDecisionMade          Status = "DECISION_MADE"
	StatusFetchQueued           Status = "FETCH_QUEUED"
	StatusDownloadQueued        Status = "DOWNLOAD_QUEUED"
	StatusNeedMoreInput         Status = "NEED_MORE_INPUT"
	StatusWaitingForUser        Status = "WAITING_FOR_USER"
	StatusNeedsExpertReview     Status = "NEEDS_EXPERT_REVIEW"
	StatusManualReview          Status = "MANUAL_REVIEW"
	StatusCompleted             Status = "COMPLETED"
	StatusFailed                Status = "FAILED"
)

// Terminal reports whether a status stops automatic progression.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNeedsExpertReview, StatusWaitingForUser, StatusManualReview, StatusFailed:
		return true
	default:
		return false
	}
}

// Mode is the job's operating mode.
type Mode string

const (
	ModeDiscovery    Mode = "discovery"
	ModeVerification Mode = "verification"
)

// Job is the root aggregate entity.
type Job struct {
	ID              int64          `json:"id"`
	UserID          string         `json:"user_id"`
	Mode            Mode           `json:"mode"`
	Status          Status         `json:"status"`
	Config          map[string]any `json:"config"`
	TerminalResult  map[string]any `json:"terminal_result,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	LastHeartbeatAt *time.Time     `json:"last_heartbeat_at,omitempty"`
}

// CreateJobRequest captures the inputs accepted when a job is created.
type CreateJobRequest struct {
	UserID string         `json:"user_id"`
	Mode   Mode           `json:"mode"`
	Config map[string]any `json:"config,omitempty"`
}

// JobFilters contains filtering options for listing jobs.
type JobFilters struct {
	Status Status `json:"status,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
