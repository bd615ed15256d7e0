package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/litreview/engine/internal/cache"
	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/queue"
)

// unreachableDB returns a *sql.DB pointed at a port nothing listens on, so
// CheckHealth fails fast with a connection-refused error rather than a
// timeout — no real Postgres instance required for the unhealthy path.
func unreachableDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", "host=127.0.0.1 port=1 user=x password=x dbname=x sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		engine: gin.New(),
		cfg: &config.Config{
			Admin: &config.AdminPolicy{DecisionProvider: "rule_based"},
		},
		db:    unreachableDB(t),
		cache: cache.New(config.RedisConfig{Addr: "127.0.0.1:1"}),
		pool:  &queue.WorkerPool{},
	}
	s.setupRoutes()
	return s, httptest.NewServer(s.engine)
}

func TestHealthHandlerReportsUnhealthyOnDatabaseFailure(t *testing.T) {
	_, ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.NotEmpty(t, body.Error)
	assert.Nil(t, body.Database)
}

func TestGetJobHandlerRejectsNonNumericID(t *testing.T) {
	_, ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/jobs/not-a-number")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
