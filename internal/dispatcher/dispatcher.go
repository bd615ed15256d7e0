// Package dispatcher implements the Stage Dispatcher (C3): the single
// place that knows which collaborator runs for a job's current status,
// what status it transitions to on success, and whether the job should
// be pushed back onto the work queue afterward. One Dispatch call
// performs exactly one stage transition; internal/queue's WorkerPool
// re-polls the queue to drive a job through the rest of its lifecycle.
// Grounded on the teacher's pkg/queue dispatch-by-map idiom
// (internal/queue.Dispatcher is the interface it satisfies) and on
// decisionhandlers.Registry's handler-table shape.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/litreview/engine/internal/cache"
	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/decision"
	"github.com/litreview/engine/internal/decisionhandlers"
	"github.com/litreview/engine/internal/download"
	"github.com/litreview/engine/internal/embedding"
	"github.com/litreview/engine/internal/events"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/query"
	"github.com/litreview/engine/internal/store"
)

// Dispatcher holds every collaborator a stage handler might need. It
// satisfies internal/queue.Dispatcher.
type Dispatcher struct {
	store      *store.Store
	cache      *cache.Cache
	llm        llm.Provider
	embedder   embedding.Embedder
	decisions  *decisionhandlers.Registry
	controller *decision.Controller
	events     *events.Publisher
	router     *query.ProviderRouter
	downloader *download.Downloader
	policy     config.AdminPolicy
}

// New builds a Dispatcher wired to every collaborator the stage table
// references.
func New(
	st *store.Store,
	c *cache.Cache,
	llmProvider llm.Provider,
	embedder embedding.Embedder,
	decisions *decisionhandlers.Registry,
	controller *decision.Controller,
	pub *events.Publisher,
	router *query.ProviderRouter,
	downloader *download.Downloader,
	policy config.AdminPolicy,
) *Dispatcher {
	return &Dispatcher{
		store:      st,
		cache:      c,
		llm:        llmProvider,
		embedder:   embedder,
		decisions:  decisions,
		controller: controller,
		events:     pub,
		router:     router,
		downloader: downloader,
		policy:     policy,
	}
}

// stageResult is what every stage handler reports back to Dispatch: the
// status to CAS the job to (empty means "a handler already transitioned
// it, or there is nothing to transition"), and whether the job should be
// re-enqueued to keep flowing through the pipeline.
type stageResult struct {
	next      model.Status
	reenqueue bool
}

// stageHandler runs the work for one job status and reports the
// transition Dispatch should apply.
type stageHandler func(ctx context.Context, d *Dispatcher, job *model.Job) (stageResult, error)

// stageHandlers is the §4.3 stage table: one entry per non-terminal
// status. No init() — the map literal is the whole of the wiring.
var stageHandlers = map[model.Status]stageHandler{
	model.StatusCreated:              stageCreated,
	model.StatusReadyToIngest:        stageReadyToIngest,
	model.StatusIngested:             stageIngested,
	model.StatusTriplesExtracted:     stageTriplesExtracted,
	model.StatusStructuralGraphBuilt: stageStructuralGraphBuilt,
	model.StatusGraphSanitized:       stageGraphSanitized,
	model.StatusGraphSemanticMerged:  stageGraphSemanticMerged,
	model.StatusPathReasoningDone:    stagePathReasoningDone,
	model.StatusDecisionMade:         stageDecisionMade,
	model.StatusFetchQueued:          stageFetchQueued,
	model.StatusDownloadQueued:       stageDownloadQueued,
}

// Dispatch loads the job, looks up the handler registered for its
// current status, runs it, and applies the resulting transition. A
// status with no registered handler (terminal, or one the admin policy
// never routes to automatically) is logged and dropped rather than
// treated as an error — matching the generic dispatch pseudocode's
// "log and drop" rule for statuses with no handler.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID int64) error {
	job, err := d.store.LoadJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("dispatcher: loading job %d: %w", jobID, err)
	}
	log := slog.With("job_id", jobID, "status", job.Status)

	if job.Status.Terminal() {
		log.Warn("dispatch called for a terminal job, dropping")
		return nil
	}

	handler, ok := stageHandlers[job.Status]
	if !ok {
		log.Error("no stage handler registered for status, dropping")
		return nil
	}

	result, err := d.runHandler(ctx, log, handler, job)
	if err != nil {
		log.Error("stage handler failed, failing job", "error", err)
		if ok, casErr := d.store.UpdateStatus(ctx, job.ID, job.Status, model.StatusFailed); casErr != nil {
			log.Error("failed to mark job failed", "error", casErr)
		} else if ok {
			d.publishStatus(ctx, job, model.StatusFailed)
		}
		return err
	}

	if result.next != "" && result.next != job.Status {
		ok, casErr := d.store.UpdateStatus(ctx, job.ID, job.Status, result.next)
		if casErr != nil {
			return fmt.Errorf("dispatcher: transitioning job %d to %s: %w", jobID, result.next, casErr)
		}
		if !ok {
			log.Warn("status changed concurrently, dropping transition", "attempted", result.next)
			return nil
		}
		d.publishStatus(ctx, job, result.next)
	}

	if result.reenqueue {
		if err := d.store.Enqueue(ctx, job.ID); err != nil {
			return fmt.Errorf("dispatcher: re-enqueuing job %d: %w", jobID, err)
		}
	}
	return nil
}

// runHandler calls a stage handler with panic recovery, matching the
// teacher's worker-level recovery around its session executor: a panic
// is caught here rather than crashing the poller, logged with the stack
// trace, and mapped to the same failure path a returned error takes.
func (d *Dispatcher) runHandler(ctx context.Context, log *slog.Logger, handler stageHandler, job *model.Job) (result stageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("stage handler panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("stage %s: handler panicked: %v", job.Status, r)
		}
	}()
	return handler(ctx, d, job)
}

func (d *Dispatcher) publishProgress(ctx context.Context, jobID int64, stage, state, detail string) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishStageProgress(ctx, jobID, events.StageProgressPayload{
		Type:   "stage.progress",
		JobID:  jobID,
		Stage:  stage,
		State:  state,
		Detail: detail,
	}); err != nil {
		slog.Error("publishing stage progress event failed", "job_id", jobID, "error", err)
	}
}

func (d *Dispatcher) publishStatus(ctx context.Context, job *model.Job, status model.Status) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishJobStatus(ctx, job.ID, job.UserID, events.JobStatusPayload{
		Type:      "job.status",
		JobID:     job.ID,
		Status:    status,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		slog.Error("publishing job status event failed", "job_id", job.ID, "error", err)
	}
}
