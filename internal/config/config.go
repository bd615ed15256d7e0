package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
	ConnMaxIdleTime int // seconds
}

// RedisConfig holds cache connection settings (§2.2 domain stack).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig holds worker-pool tuning (§5).
type QueueConfig struct {
	WorkerCount        int
	PollIntervalMillis int
	PollJitterMillis   int
	MaxConcurrentJobs  int
	HeartbeatInterval  int // seconds
	OrphanAfterSeconds int
}

// LLMConfig holds the gRPC LLM backend endpoint and default generation
// parameters.
type LLMConfig struct {
	Address     string
	Model       string
	Temperature float64
	MaxTokens   int
	TimeoutSecs int
	MaxRetries  int
}

// EmbeddingConfig holds the gRPC embedding backend endpoint, mirroring
// LLMConfig's shape for the sibling external collaborator.
type EmbeddingConfig struct {
	Address   string
	Dimension int
}

// Config wraps everything loaded once at startup; immutable afterward.
type Config struct {
	configDir string
	Admin     *AdminPolicy
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
}

// Stats summarizes the loaded configuration for the health endpoint.
type Stats struct {
	ConfigDir        string `json:"config_dir"`
	DecisionProvider string `json:"decision_provider"`
	WorkerCount      int    `json:"worker_count"`
	MaxPapersPerJob  int    `json:"max_papers_per_job"`
}

// Stats returns a snapshot of the loaded configuration for diagnostics.
func (c *Config) Stats() Stats {
	return Stats{
		ConfigDir:        c.configDir,
		DecisionProvider: c.Admin.DecisionProvider,
		WorkerCount:      c.Queue.WorkerCount,
		MaxPapersPerJob:  c.Admin.SystemMaxPapersPerJob,
	}
}

// Initialize loads the .env file (if present), the AdminPolicy YAML from
// configDir, and environment-sourced infra settings. Mirrors the teacher's
// config.Initialize(ctx, configDir) + godotenv.Load startup sequence.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Absence of a .env file is not fatal in production deployments.
	}

	policyPath := filepath.Join(configDir, "admin_policy.yaml")
	admin, err := LoadAdminPolicy(policyPath)
	if err != nil {
		return nil, fmt.Errorf("loading admin policy: %w", err)
	}

	cfg := &Config{
		configDir: configDir,
		Admin:     admin,
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "litreview"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "litreview"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME_SECONDS", 1800),
			ConnMaxIdleTime: getEnvInt("DB_CONN_MAX_IDLE_SECONDS", 300),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			WorkerCount:        getEnvInt("QUEUE_WORKER_COUNT", 4),
			PollIntervalMillis: getEnvInt("QUEUE_POLL_INTERVAL_MS", 1000),
			PollJitterMillis:   getEnvInt("QUEUE_POLL_JITTER_MS", 250),
			MaxConcurrentJobs:  getEnvInt("QUEUE_MAX_CONCURRENT_JOBS", 8),
			HeartbeatInterval:  getEnvInt("QUEUE_HEARTBEAT_SECONDS", 15),
			OrphanAfterSeconds: getEnvInt("QUEUE_ORPHAN_AFTER_SECONDS", 120),
		},
		LLM: LLMConfig{
			Address:     getEnv("LLM_ADDR", "localhost:50051"),
			Model:       getEnv("LLM_MODEL", "default"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
			TimeoutSecs: getEnvInt("LLM_TIMEOUT_SECONDS", 30),
			MaxRetries:  getEnvInt("LLM_MAX_RETRIES", 3),
		},
		Embedding: EmbeddingConfig{
			Address:   getEnv("EMBEDDING_ADDR", "localhost:50052"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 768),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
