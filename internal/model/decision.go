package model

import "time"

// DecisionLabel is a member of the closed decision set (§4.7).
type DecisionLabel string

const (
	DecisionHaltConfident             DecisionLabel = "HALT_CONFIDENT"
	DecisionHaltNoHypothesis          DecisionLabel = "HALT_NO_HYPOTHESIS"
	DecisionInsufficientSignal        DecisionLabel = "INSUFFICIENT_SIGNAL"
	DecisionFetchMoreLiterature       DecisionLabel = "FETCH_MORE_LITERATURE"
	DecisionStrategicDownloadTargeted DecisionLabel = "STRATEGIC_DOWNLOAD_TARGETED"
	DecisionVerificationFound         DecisionLabel = "VERIFICATION_FOUND"
	DecisionVerificationNotFound      DecisionLabel = "VERIFICATION_NOT_FOUND"

	// DecisionUndecided is never persisted; it signals the rule-based
	// provider found no matching rule and a configured fallback should run.
	// The shipped rule set always terminates in a default match, so this
	// only appears in "hybrid" controller mode with a non-default rule set.
	DecisionUndecided DecisionLabel = "UNDECIDED"
)

// DecisionResult is a snapshot of one decision cycle. Append-only; rows
// are strictly monotone in CreatedAt per job.
type DecisionResult struct {
	ID                   string         `json:"id"`
	JobID                int64          `json:"job_id"`
	DecisionLabel        DecisionLabel  `json:"decision_label"`
	ProviderUsed         string         `json:"provider_used"` // rule_based | llm
	MeasurementsSnapshot map[string]any `json:"measurements_snapshot"`
	FallbackUsed         bool           `json:"fallback_used"`
	FallbackReason       string         `json:"fallback_reason,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// VerificationResult is the outcome of a verification-mode job.
type VerificationResult struct {
	ID               string    `json:"id"`
	JobID            int64     `json:"job_id"`
	Source           string    `json:"source"`
	Target           string    `json:"target"`
	ConnectionFound  *bool     `json:"connection_found,omitempty"`
	ConnectionType   string    `json:"connection_type,omitempty"`
	Path             []string  `json:"path,omitempty"`
	Explanation      string    `json:"explanation,omitempty"`
	SupportingPapers []string  `json:"supporting_papers,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
