package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/database"
	"github.com/litreview/engine/internal/model"
)

// newTestStore creates a test database client inline (avoiding import
// cycle with a shared test-database package), the same way the teacher's
// pkg/database/client_test.go builds newTestClient per package.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := database.NewClient(ctx, config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Database:        "test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1800,
		ConnMaxIdleTime: 300,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db)
}

func createTestJob(ctx context.Context, t *testing.T, s *Store) *model.Job {
	t.Helper()
	job, err := s.CreateJob(ctx, model.CreateJobRequest{
		UserID: "user-1",
		Mode:   model.ModeDiscovery,
		Config: map[string]any{"seed_query": "test"},
	})
	require.NoError(t, err)
	return job
}

func TestCreateJobAndLoadJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := createTestJob(ctx, t, s)
	require.NotZero(t, job.ID)
	require.Equal(t, model.StatusCreated, job.Status)

	loaded, err := s.LoadJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, loaded.ID)
	require.Equal(t, "user-1", loaded.UserID)
}

func TestLoadJobNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadJob(ctx, 999999)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestUpdateStatusCASSucceedsOnMatchingOld pins the compare-and-swap
// contract: the transition applies when the row's current status still
// matches expectedOld.
func TestUpdateStatusCASSucceedsOnMatchingOld(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := createTestJob(ctx, t, s)

	ok, err := s.UpdateStatus(ctx, job.ID, model.StatusCreated, model.StatusReadyToIngest)
	require.NoError(t, err)
	require.True(t, ok)

	loaded, err := s.LoadJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusReadyToIngest, loaded.Status)
}

// TestUpdateStatusCASFailsOnStaleOld pins the other half: a transition
// guarded by a stale expectedOld is rejected, mirroring the teacher's
// claimNextSession status-guarded UPDATE serializing concurrent dispatch.
func TestUpdateStatusCASFailsOnStaleOld(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := createTestJob(ctx, t, s)

	ok, err := s.UpdateStatus(ctx, job.ID, model.StatusCreated, model.StatusReadyToIngest)
	require.NoError(t, err)
	require.True(t, ok)

	// Second caller still believes the job is CREATED; its CAS must fail
	// because the row already moved to READY_TO_INGEST.
	ok, err = s.UpdateStatus(ctx, job.ID, model.StatusCreated, model.StatusIngested)
	require.NoError(t, err)
	require.False(t, ok)

	loaded, err := s.LoadJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusReadyToIngest, loaded.Status, "status must be unchanged by the losing CAS")
}

func TestEnqueueClaimDequeue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := createTestJob(ctx, t, s)

	require.NoError(t, s.Enqueue(ctx, job.ID))

	claimed, ok, err := s.Claim(ctx, "worker-0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, job.ID, claimed.ID)

	active, err := s.CountActiveJobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, active)

	// The queue is now empty of unclaimed work; a second claim attempt
	// must report none available rather than re-handing out the same row.
	_, ok, err = s.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Dequeue(ctx, job.ID))

	active, err = s.CountActiveJobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, active)
}

func TestClaimGivesSecondWorkerTheNextUnclaimedRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jobA := createTestJob(ctx, t, s)
	jobB := createTestJob(ctx, t, s)
	require.NoError(t, s.Enqueue(ctx, jobA.ID))
	require.NoError(t, s.Enqueue(ctx, jobB.ID))

	firstClaim, ok, err := s.Claim(ctx, "worker-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, jobA.ID, firstClaim.ID, "FIFO order: the earlier-enqueued job claims first")

	secondClaim, ok, err := s.Claim(ctx, "worker-b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, jobB.ID, secondClaim.ID, "a second worker skips the already-claimed row and claims the other one")
}

func TestReleaseStaleClaimsFreesOrphanedJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := createTestJob(ctx, t, s)
	require.NoError(t, s.Enqueue(ctx, job.ID))

	_, ok, err := s.Claim(ctx, "worker-0")
	require.NoError(t, err)
	require.True(t, ok)

	// The job never heartbeats, so any staleness threshold in the future
	// must consider it orphaned.
	freed, err := s.ReleaseStaleClaims(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), freed)

	reclaimed, ok, err := s.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, job.ID, reclaimed.ID)
}

func TestReleaseStaleClaimsLeavesFreshHeartbeatsAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := createTestJob(ctx, t, s)
	require.NoError(t, s.Enqueue(ctx, job.ID))

	_, ok, err := s.Claim(ctx, "worker-0")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Heartbeat(ctx, job.ID))

	freed, err := s.ReleaseStaleClaims(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(0), freed)
}
