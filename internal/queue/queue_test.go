package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

// fakeStore is a hand-rolled mock of the Store interface, matching the
// teacher's worker_test.go style of exercising Worker logic without a
// real database client.
type fakeStore struct {
	mu sync.Mutex

	activeJobs  int
	claimJob    *model.Job
	claimOK     bool
	claimErr    error
	dequeueErr  error
	heartbeatN  int
	dequeuedIDs []int64
	claimCalls  int
}

func (f *fakeStore) Claim(ctx context.Context, workerID string) (*model.Job, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	return f.claimJob, f.claimOK, f.claimErr
}

func (f *fakeStore) Dequeue(ctx context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dequeuedIDs = append(f.dequeuedIDs, jobID)
	return f.dequeueErr
}

func (f *fakeStore) Heartbeat(ctx context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeatN++
	return nil
}

func (f *fakeStore) CountActiveJobs(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeJobs, nil
}

func (f *fakeStore) ReleaseStaleClaims(ctx context.Context, staleBefore time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) wasDequeued(jobID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.dequeuedIDs {
		if id == jobID {
			return true
		}
	}
	return false
}

// fakeDispatcher is a hand-rolled mock of the Dispatcher interface.
type fakeDispatcher struct {
	mu         sync.Mutex
	err        error
	dispatched []int64
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, jobID)
	return f.err
}

func (f *fakeDispatcher) wasDispatched(jobID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.dispatched {
		if id == jobID {
			return true
		}
	}
	return false
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		WorkerCount:        1,
		PollIntervalMillis: 10,
		PollJitterMillis:   0,
		MaxConcurrentJobs:  2,
		HeartbeatInterval:  60,
		OrphanAfterSeconds: 120,
	}
}

func newTestWorker(store Store, dispatcher Dispatcher, cfg config.QueueConfig) *worker {
	pool := NewWorkerPool("test-pod", store, dispatcher, cfg)
	return &worker{id: "test-pod-worker-0", pool: pool}
}

func TestPollAndProcessReturnsAtCapacity(t *testing.T) {
	store := &fakeStore{activeJobs: 5}
	dispatcher := &fakeDispatcher{}
	w := newTestWorker(store, dispatcher, testQueueConfig())

	err := w.pollAndProcess(context.Background())
	require.ErrorIs(t, err, ErrAtCapacity)
	assert.Equal(t, 0, store.claimCalls, "must not claim work once at capacity")
}

func TestPollAndProcessReturnsNoJobsAvailable(t *testing.T) {
	store := &fakeStore{claimOK: false}
	dispatcher := &fakeDispatcher{}
	w := newTestWorker(store, dispatcher, testQueueConfig())

	err := w.pollAndProcess(context.Background())
	require.ErrorIs(t, err, ErrNoJobsAvailable)
	assert.Empty(t, dispatcher.dispatched)
}

func TestPollAndProcessDispatchesClaimedJobAndDequeuesOnSuccess(t *testing.T) {
	job := &model.Job{ID: 42, Status: model.StatusCreated}
	store := &fakeStore{claimJob: job, claimOK: true}
	dispatcher := &fakeDispatcher{}
	w := newTestWorker(store, dispatcher, testQueueConfig())

	err := w.pollAndProcess(context.Background())
	require.NoError(t, err)
	assert.True(t, dispatcher.wasDispatched(42))
	assert.True(t, store.wasDequeued(42))
}

// TestPollAndProcessDequeuesEvenWhenDispatchFails pins the unconditional
// dequeue-after-dispatch contract: a dispatch failure still removes the
// job from the queue rather than leaving it claimed forever, matching
// the teacher's Worker.pollAndProcess semantics.
func TestPollAndProcessDequeuesEvenWhenDispatchFails(t *testing.T) {
	job := &model.Job{ID: 7, Status: model.StatusCreated}
	store := &fakeStore{claimJob: job, claimOK: true}
	dispatcher := &fakeDispatcher{err: errors.New("dispatch failed")}
	w := newTestWorker(store, dispatcher, testQueueConfig())

	err := w.pollAndProcess(context.Background())
	require.NoError(t, err, "a dispatch failure is logged, not propagated, so the poll loop keeps running")
	assert.True(t, store.wasDequeued(7))
}

func TestCancelJobCancelsRegisteredJob(t *testing.T) {
	pool := NewWorkerPool("test-pod", &fakeStore{}, &fakeDispatcher{}, testQueueConfig())

	cancelled := false
	pool.registerJob(1, func() { cancelled = true })

	assert.True(t, pool.CancelJob(1))
	assert.True(t, cancelled)
	assert.False(t, pool.CancelJob(1), "a cancelled job is no longer tracked, so it can only be cancelled once")
}

func TestHealthReportsWorkerAndOrphanState(t *testing.T) {
	pool := NewWorkerPool("test-pod", &fakeStore{}, &fakeDispatcher{}, testQueueConfig())
	pool.registerJob(1, func() {})

	h := pool.Health()
	assert.Equal(t, "test-pod", h.PodID)
	assert.Equal(t, 1, h.ActiveJobs)
	assert.Equal(t, int64(0), h.OrphansRecovered)
}
