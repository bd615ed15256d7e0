// litreviewd is the orchestrator process: it loads configuration, opens
// the database/cache/transport connections, wires every collaborator the
// Stage Dispatcher needs, and serves the ambient HTTP/WebSocket surface
// alongside the C2 worker pool. Grounded on the teacher's
// cmd/tarsy/main.go startup sequence (config → database → services →
// router → Run), generalized from its gin-only health router to the
// fuller internal/api.Server this module's larger collaborator graph
// needs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/litreview/engine/internal/api"
	"github.com/litreview/engine/internal/cache"
	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/database"
	"github.com/litreview/engine/internal/decision"
	"github.com/litreview/engine/internal/decisionhandlers"
	"github.com/litreview/engine/internal/dispatcher"
	"github.com/litreview/engine/internal/download"
	"github.com/litreview/engine/internal/embedding"
	"github.com/litreview/engine/internal/events"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/paperprovider"
	"github.com/litreview/engine/internal/query"
	"github.com/litreview/engine/internal/queue"
	"github.com/litreview/engine/internal/store"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8080"), "HTTP listen address")
	podID := flag.String("pod-id", getEnv("POD_ID", "litreviewd-local"), "Identifier for this worker pool instance")
	flag.Parse()

	setupLogging()
	slog.Info("starting litreviewd", "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}

	db, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("connecting to database failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	redisCache := cache.New(cfg.Redis)
	defer redisCache.Close()

	st := store.New(db)

	llmProvider, err := llm.NewGRPCProvider(cfg.LLM)
	if err != nil {
		slog.Error("connecting to llm backend failed", "error", err)
		os.Exit(1)
	}
	defer llmProvider.Close()

	embedder, err := embedding.NewGRPCEmbedder(cfg.Embedding.Address, cfg.Embedding.Dimension)
	if err != nil {
		slog.Error("connecting to embedding backend failed", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	router := query.NewProviderRouter(
		map[string]paperprovider.Provider{
			"biomedical": paperprovider.NewArxivProvider(),
		},
		paperprovider.NewSemanticScholarProvider(getEnv("SEMANTIC_SCHOLAR_API_KEY", ""), time.Second),
	)

	downloader := download.New(cfg.Admin.Download)

	ruleProvider := decision.NewRuleBasedProvider(cfg.Admin.DecisionThresholds)
	var llmDecisionProvider *decision.LLMProvider
	if cfg.Admin.DecisionProvider == "hybrid" || cfg.Admin.DecisionProvider == "llm" {
		llmDecisionProvider = decision.NewLLMProvider(llmProvider)
	}
	controller := decision.NewController(cfg.Admin.DecisionProvider, ruleProvider, llmDecisionProvider)

	pub := events.NewPublisher(db)
	decisions := decisionhandlers.New(st, pub, *cfg.Admin)

	disp := dispatcher.New(st, redisCache, llmProvider, embedder, decisions, controller, pub, router, downloader, *cfg.Admin)

	pool := queue.NewWorkerPool(*podID, st, disp, cfg.Queue)
	pool.Start(ctx)
	defer pool.Stop()
	slog.Info("worker pool started", "pod_id", *podID, "workers", cfg.Queue.WorkerCount)

	connManager := events.NewConnectionManager(events.NewSQLCatchup(db))
	listener := events.NewNotifyListener(database.DSN(cfg.Database), connManager)
	connManager.SetListener(listener)
	go func() {
		if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("notify listener stopped", "error", err)
		}
	}()
	defer listener.Stop(context.Background())

	server := api.NewServer(cfg, db, redisCache, st, pool, connManager)
	go func() {
		if err := server.Start(*httpAddr); err != nil {
			slog.Error("http server stopped", "error", err)
		}
	}()
	slog.Info("http server listening", "addr", *httpAddr)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
}

// setupLogging selects a JSON handler in production and a text handler
// in dev, matching §2.1's env-var-selected slog handler convention.
func setupLogging() {
	level := slog.LevelInfo
	if getEnv("LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if getEnv("ENV", "development") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
