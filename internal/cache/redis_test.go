package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

// newTestCache starts a real Redis container inline, the same way the
// store package's newTestStore starts Postgres inline rather than
// reaching for a shared cross-package test helper.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in short mode")
	}
	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	addr, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)

	c := New(config.RedisConfig{Addr: addr})
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))
	return c
}

func TestCachePingAgainstRealRedis(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))
}

func TestStructuralGraphRoundTripAndDeletion(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	g := model.Graph{
		Nodes: []model.Node{{Text: "entity a", Type: "concept"}},
	}

	_, found, err := c.GetStructuralGraph(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found, "no graph cached yet")

	require.NoError(t, c.PutStructuralGraph(ctx, 1, g, time.Minute))

	got, found, err := c.GetStructuralGraph(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, g.Nodes[0].Text, got.Nodes[0].Text)

	require.NoError(t, c.DeleteStructuralGraph(ctx, 1))

	_, found, err = c.GetStructuralGraph(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found, "delete after consumption must actually clear the key")
}

func TestStructuralGraphExpiresAfterTTL(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutStructuralGraph(ctx, 2, model.Graph{}, 50*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	_, found, err := c.GetStructuralGraph(ctx, 2)
	require.NoError(t, err)
	assert.False(t, found, "entry must be gone once its TTL has elapsed")
}

func TestEmbeddingCacheIsSharedByTextHashIndependentOfJob(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	vec := []float64{0.1, 0.2, 0.3}
	require.NoError(t, c.PutEmbedding(ctx, "canonical entity text", vec))

	got, found, err := c.GetEmbedding(ctx, "canonical entity text")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, vec, got)

	_, found, err = c.GetEmbedding(ctx, "some other text")
	require.NoError(t, err)
	assert.False(t, found)
}
