// Package decisionhandlers implements the Decision Handler Registry (C8):
// one handler per decision label, each given the job, its decision
// result, the active graph and hypotheses, and the job's metadata, each
// producing a HandlerResult and idempotently mutating job status.
// Handlers never call each other. Grounded on the same handler-table
// idiom as internal/dispatcher and on
// original_source/backend/app/decision/handlers/registry.py.
package decisionhandlers

import (
	"context"
	"fmt"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/events"
	"github.com/litreview/engine/internal/measurement"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

// HandlerResult is the contract every decision handler returns (§4.8).
type HandlerResult struct {
	Status     model.Status   `json:"status"`
	Message    string         `json:"message"`
	NextAction string         `json:"next_action,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Input bundles everything a handler needs to act on one decision cycle.
type Input struct {
	Job         *model.Job
	Decision    *model.DecisionResult
	Snapshot    measurement.Snapshot
	Graph       *model.Graph
	Hypotheses  []model.Hypothesis
	TopK        int
}

// Handler computes the outcome of one decision label and applies it.
type Handler func(ctx context.Context, st *store.Store, pub *events.Publisher, in Input) (HandlerResult, error)

// Registry is the §4.8 `map[DecisionLabel]DecisionHandler` table.
type Registry struct {
	handlers map[model.DecisionLabel]Handler
	store    *store.Store
	pub      *events.Publisher
	policy   config.AdminPolicy
}

func New(st *store.Store, pub *events.Publisher, policy config.AdminPolicy) *Registry {
	r := &Registry{
		handlers: make(map[model.DecisionLabel]Handler),
		store:    st,
		pub:      pub,
		policy:   policy,
	}
	r.handlers[model.DecisionHaltConfident] = haltConfident
	r.handlers[model.DecisionHaltNoHypothesis] = haltNoHypothesis
	r.handlers[model.DecisionInsufficientSignal] = insufficientSignal
	r.handlers[model.DecisionFetchMoreLiterature] = fetchMoreLiterature(policy.SystemMaxPapersPerJob)
	r.handlers[model.DecisionStrategicDownloadTargeted] = strategicDownloadTargeted
	r.handlers[model.DecisionVerificationFound] = verificationOutcome(true)
	r.handlers[model.DecisionVerificationNotFound] = verificationOutcome(false)
	return r
}

// Dispatch runs the handler registered for the decision's label.
func (r *Registry) Dispatch(ctx context.Context, in Input) (HandlerResult, error) {
	h, ok := r.handlers[in.Decision.DecisionLabel]
	if !ok {
		return HandlerResult{}, fmt.Errorf("decisionhandlers: no handler registered for label %q", in.Decision.DecisionLabel)
	}
	return h(ctx, r.store, r.pub, in)
}
