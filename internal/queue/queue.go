// Package queue implements the job work queue and worker pool (C2):
// a fixed-size pool of goroutines that poll internal/store's job_queue
// table, claim work with SKIP LOCKED, and hand each claimed job to the
// Dispatcher. Grounded on the teacher's pkg/queue/pool.go + worker.go +
// orphan.go, generalized from AlertSession polling to Job polling and
// from the generated ent client to internal/store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

// ErrNoJobsAvailable indicates the queue was empty at poll time.
var ErrNoJobsAvailable = errors.New("queue: no jobs available")

// ErrAtCapacity indicates the pool's global concurrency limit is reached.
var ErrAtCapacity = errors.New("queue: at capacity")

// Dispatcher is the subset of internal/dispatcher.Dispatcher a worker
// needs: run the stage table against a claimed job until it blocks,
// re-enqueues, or reaches a terminal status.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID int64) error
}

// Store is the subset of internal/store.Store the queue package uses.
type Store interface {
	Claim(ctx context.Context, workerID string) (*model.Job, bool, error)
	Dequeue(ctx context.Context, jobID int64) error
	Heartbeat(ctx context.Context, jobID int64) error
	CountActiveJobs(ctx context.Context) (int, error)
	ReleaseStaleClaims(ctx context.Context, staleBefore time.Time) (int64, error)
}

// WorkerPool manages a fixed set of polling workers plus an orphan
// detection goroutine, mirroring the teacher's WorkerPool shape.
type WorkerPool struct {
	podID      string
	store      Store
	dispatcher Dispatcher
	cfg        config.QueueConfig

	workers  []*worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	activeJobs     map[int64]context.CancelFunc
	started        bool
	orphansMu      sync.Mutex
	lastOrphanScan time.Time
	orphansFreed   int64
}

// NewWorkerPool constructs a pool; Start must be called to begin polling.
func NewWorkerPool(podID string, store Store, dispatcher Dispatcher, cfg config.QueueConfig) *WorkerPool {
	return &WorkerPool{
		podID:      podID,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		activeJobs: make(map[int64]context.CancelFunc),
	}
}

// Start spawns WorkerCount polling goroutines plus the orphan-detection
// loop. Safe to call once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		slog.Warn("worker pool already started, ignoring duplicate start", "pod_id", p.podID)
		return
	}
	p.started = true
	p.mu.Unlock()

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := &worker{
			id:   fmt.Sprintf("%s-worker-%d", p.podID, i),
			pool: p,
		}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run(ctx, &p.wg)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()
}

// Stop signals every worker to stop after its current job and waits for
// them to finish (graceful shutdown — matches the teacher's semantics:
// in-flight work always runs to completion or its own context deadline).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool")
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

// CancelJob cancels a job being processed by this pod, if any, returning
// true if found. The job stops being tracked once cancelled, so a second
// call for it returns false. Used by the API's job-cancellation surface.
func (p *WorkerPool) CancelJob(jobID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.activeJobs[jobID]; ok {
		cancel()
		delete(p.activeJobs, jobID)
		return true
	}
	return false
}

func (p *WorkerPool) registerJob(jobID int64, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeJobs[jobID] = cancel
}

func (p *WorkerPool) unregisterJob(jobID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, jobID)
}

// Health reports pool status for the ambient /health endpoint.
type Health struct {
	PodID            string `json:"pod_id"`
	TotalWorkers     int    `json:"total_workers"`
	ActiveJobs       int    `json:"active_jobs"`
	LastOrphanScan   string `json:"last_orphan_scan,omitempty"`
	OrphansRecovered int64  `json:"orphans_recovered"`
}

func (p *WorkerPool) Health() Health {
	p.mu.RLock()
	active := len(p.activeJobs)
	p.mu.RUnlock()

	p.orphansMu.Lock()
	lastScan := p.lastOrphanScan
	freed := p.orphansFreed
	p.orphansMu.Unlock()

	h := Health{
		PodID:            p.podID,
		TotalWorkers:     len(p.workers),
		ActiveJobs:       active,
		OrphansRecovered: freed,
	}
	if !lastScan.IsZero() {
		h.LastOrphanScan = lastScan.Format(time.RFC3339)
	}
	return h
}

// worker is a single polling goroutine, grounded on the teacher's Worker.
type worker struct {
	id   string
	pool *WorkerPool
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	log := slog.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-w.pool.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *worker) sleep(d time.Duration) {
	select {
	case <-w.pool.stopCh:
	case <-time.After(d):
	}
}

func (w *worker) pollInterval() time.Duration {
	base := time.Duration(w.pool.cfg.PollIntervalMillis) * time.Millisecond
	jitter := time.Duration(w.pool.cfg.PollJitterMillis) * time.Millisecond
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// pollAndProcess checks global capacity, claims the next job, and runs
// it through the dispatcher. Grounded on Worker.pollAndProcess.
func (w *worker) pollAndProcess(ctx context.Context) error {
	active, err := w.pool.store.CountActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("checking active jobs: %w", err)
	}
	if active >= w.pool.cfg.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	job, ok, err := w.pool.store.Claim(ctx, w.id)
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}
	if !ok {
		return ErrNoJobsAvailable
	}

	log := slog.With("job_id", job.ID, "worker_id", w.id)
	log.Info("job claimed")

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.pool.registerJob(job.ID, cancel)
	defer w.pool.unregisterJob(job.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job.ID)

	if err := w.pool.dispatcher.Dispatch(jobCtx, job.ID); err != nil {
		log.Error("dispatch failed", "error", err)
	}

	if err := w.pool.store.Dequeue(ctx, job.ID); err != nil {
		log.Error("dequeue failed", "error", err)
	}
	return nil
}

func (w *worker) runHeartbeat(ctx context.Context, jobID int64) {
	interval := time.Duration(w.pool.cfg.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.pool.store.Heartbeat(ctx, jobID); err != nil {
				slog.Error("heartbeat failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// runOrphanDetection periodically releases queue claims held by jobs
// whose heartbeat has gone stale, so another worker (on this pod or
// another) can pick the job back up. All pods run this independently;
// ReleaseStaleClaims is idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	interval := time.Duration(p.cfg.OrphanAfterSeconds) * time.Second / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			staleBefore := time.Now().Add(-time.Duration(p.cfg.OrphanAfterSeconds) * time.Second)
			freed, err := p.store.ReleaseStaleClaims(ctx, staleBefore)
			if err != nil {
				slog.Error("orphan detection failed", "error", err)
				continue
			}
			p.orphansMu.Lock()
			p.lastOrphanScan = time.Now()
			p.orphansFreed += freed
			p.orphansMu.Unlock()
			if freed > 0 {
				slog.Info("released stale job claims", "count", freed)
			}
		}
	}
}
