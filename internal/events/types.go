// Package events delivers real-time job-progress updates via WebSocket,
// fanned out across pods with PostgreSQL NOTIFY/LISTEN. Grounded on the
// teacher's pkg/events package (ConnectionManager, NotifyListener,
// EventPublisher), re-keyed from per-session channels to per-user and
// per-job channels and from alert-triage event types to job-progress
// event types (§5/§7 presentation events).
package events

import "strconv"

// Persistent event types (stored in the events table + NOTIFY).
const (
	EventTypeJobStatus       = "job.status"
	EventTypeStageProgress   = "stage.progress"
	EventTypeDecisionMade    = "decision.made"
	EventTypePaperFound      = "paper.found"
	EventTypeMessageCreated  = "message.created"
)

// Transient event types (NOTIFY only, no DB persistence).
const (
	EventTypeHeartbeat = "job.heartbeat"
)

// GlobalJobsChannel carries fire-and-forget job-list updates (used by a
// user's job dashboard view).
const GlobalJobsChannel = "jobs"

// UserChannel returns the channel a given user's connections subscribe
// to for every job they own.
func UserChannel(userID string) string {
	return "user:" + userID
}

// JobChannel returns the channel for one job's detailed event stream.
func JobChannel(jobID int64) string {
	return "job:" + strconv.FormatInt(jobID, 10)
}

// ClientMessage is the JSON structure for client → server WebSocket
// messages (subscribe/unsubscribe/catchup/ping).
type ClientMessage struct {
	Action      string `json:"action"`
	Channel     string `json:"channel,omitempty"`
	LastEventID *int   `json:"last_event_id,omitempty"`
}
