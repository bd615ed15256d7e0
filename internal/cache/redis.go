// Package cache wraps Redis for the two caches named in SPEC_FULL.md §5:
// the per-job structural-graph cache and the embedding cache. Grounded on
// the shape of original_source/backend/app/graphs/cache.py and
// app/embeddings/cache.py (read-through, JSON-serialized values, TTL).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

// Cache wraps a redis client with the two cache concerns this module uses.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis using the given configuration.
func New(cfg config.RedisConfig) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// Ping verifies connectivity, used by the ambient health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func structuralGraphKey(jobID int64) string {
	return fmt.Sprintf("structural_graph:%d", jobID)
}

// PutStructuralGraph caches the structural-projection graph produced by
// the first graph-build sub-stage (§4.4), with a TTL, to be consumed by
// the sanitization sub-stage immediately after.
func (c *Cache) PutStructuralGraph(ctx context.Context, jobID int64, g model.Graph, ttl time.Duration) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling structural graph: %w", err)
	}
	return c.rdb.Set(ctx, structuralGraphKey(jobID), data, ttl).Err()
}

// GetStructuralGraph reads the cached structural graph, if present.
func (c *Cache) GetStructuralGraph(ctx context.Context, jobID int64) (model.Graph, bool, error) {
	data, err := c.rdb.Get(ctx, structuralGraphKey(jobID)).Bytes()
	if err == redis.Nil {
		return model.Graph{}, false, nil
	}
	if err != nil {
		return model.Graph{}, false, fmt.Errorf("reading structural graph: %w", err)
	}
	var g model.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return model.Graph{}, false, fmt.Errorf("unmarshaling structural graph: %w", err)
	}
	return g, true, nil
}

// DeleteStructuralGraph removes the cached entry once the consuming
// sub-stage has read it (§5: "accessed only by the stage that produced it
// and the stage immediately after (delete after consumption)").
func (c *Cache) DeleteStructuralGraph(ctx context.Context, jobID int64) error {
	return c.rdb.Del(ctx, structuralGraphKey(jobID)).Err()
}

func embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + hex.EncodeToString(sum[:])
}

// GetEmbedding looks up a cached normalized embedding vector by text hash,
// independent of job, so unrelated jobs sharing canonical node text reuse
// the same vector (closes the §9 open question on embedding drift).
func (c *Cache) GetEmbedding(ctx context.Context, text string) ([]float64, bool, error) {
	data, err := c.rdb.Get(ctx, embeddingKey(text)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading embedding cache: %w", err)
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("unmarshaling cached embedding: %w", err)
	}
	return vec, true, nil
}

// PutEmbedding caches a normalized embedding vector by text hash. No TTL:
// embeddings for stable canonical text are reused indefinitely.
func (c *Cache) PutEmbedding(ctx context.Context, text string, vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshaling embedding: %w", err)
	}
	return c.rdb.Set(ctx, embeddingKey(text), data, 0).Err()
}
