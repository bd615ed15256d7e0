// Package api provides the ambient HTTP surface named in SPEC_FULL.md
// §6.1: a minimal job REST surface, a health endpoint aggregating every
// backing collaborator's status, and the presentation-event WebSocket
// upgrade. The surface's behavior is scaffolding only — job creation and
// retrieval are the only operations it performs — but its shape follows
// the teacher's own Gin-based API generation (cmd/tarsy/main.go +
// pkg/api/handlers.go, from before the project's later Echo rewrite),
// since that generation is the one still wired against a gin.Context
// rather than a generated ent client.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/litreview/engine/internal/cache"
	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/database"
	"github.com/litreview/engine/internal/events"
	"github.com/litreview/engine/internal/queue"
	"github.com/litreview/engine/internal/store"
)

// Server is the ambient HTTP/WebSocket API surface.
type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	db          *sql.DB
	cache       *cache.Cache
	store       *store.Store
	pool        *queue.WorkerPool
	connManager *events.ConnectionManager
}

// NewServer wires the gin.Engine and registers every route up front, the
// same way the teacher's cmd/tarsy/main.go builds its router inline at
// startup.
func NewServer(cfg *config.Config, db *sql.DB, c *cache.Cache, st *store.Store, pool *queue.WorkerPool, connManager *events.ConnectionManager) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:      gin.Default(),
		cfg:         cfg,
		db:          db,
		cache:       c,
		store:       st,
		pool:        pool,
		connManager: connManager,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/jobs", s.createJobHandler)
	v1.GET("/jobs/:id", s.getJobHandler)
	v1.GET("/ws", s.wsHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// HealthResponse is the /health JSON body, matching the teacher's
// status+database+configuration envelope shape.
type HealthResponse struct {
	Status        string           `json:"status"`
	Database      *database.Health `json:"database,omitempty"`
	Cache         string           `json:"cache"`
	WorkerPool    queue.Health     `json:"worker_pool"`
	Configuration config.Stats     `json:"configuration"`
	Error         string           `json:"error,omitempty"`
}

func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "healthy",
		Cache:         "ok",
		WorkerPool:    s.pool.Health(),
		Configuration: s.cfg.Stats(),
	}

	dbHealth, err := database.CheckHealth(reqCtx, s.db)
	if err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database = dbHealth

	if err := s.cache.Ping(reqCtx); err != nil {
		resp.Status = "degraded"
		resp.Cache = "unreachable"
	}

	c.JSON(http.StatusOK, resp)
}
