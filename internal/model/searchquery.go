package model

import "time"

// SearchQueryStatus is the reuse lifecycle state of a SearchQuery.
type SearchQueryStatus string

const (
	SearchQueryNew       SearchQueryStatus = "new"
	SearchQueryReusable  SearchQueryStatus = "reusable"
	SearchQueryExhausted SearchQueryStatus = "exhausted"
	SearchQueryBlocked   SearchQueryStatus = "blocked"
)

// SearchQuery is a stable intent record per hypothesis endpoint pair.
// (JobID, HypothesisSignature) is unique; HypothesisSignature is a
// deterministic hash of (source, target) only.
type SearchQuery struct {
	ID                     string            `json:"id"`
	JobID                  int64             `json:"job_id"`
	HypothesisSignature    string            `json:"hypothesis_signature"`
	QueryText              string            `json:"query_text"`
	ResolvedDomain         string            `json:"resolved_domain,omitempty"`
	DomainResolutionMethod string            `json:"domain_resolution_method,omitempty"` // allow_list | llm_fallback
	Status                 SearchQueryStatus `json:"status"`
	ReputationScore        int               `json:"reputation_score"`
	ConfigSnapshot         map[string]any    `json:"config_snapshot"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// SearchQueryRun is an append-only execution log entry. SignalDelta is
// set exactly once, after the next DecisionResult occurs.
type SearchQueryRun struct {
	ID                string    `json:"id"`
	SearchQueryID      string    `json:"search_query_id"`
	JobID              int64     `json:"job_id"`
	ProviderUsed       string    `json:"provider_used"`
	Reason             string    `json:"reason"`
	FetchedPaperIDs    []string  `json:"fetched_paper_ids"`
	AcceptedPaperIDs   []string  `json:"accepted_paper_ids"`
	RejectedPaperIDs   []string  `json:"rejected_paper_ids"`
	SignalDelta        *int      `json:"signal_delta,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
