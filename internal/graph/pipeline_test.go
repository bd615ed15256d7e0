package graph

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/cache"
	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.New(config.RedisConfig{Addr: mr.Addr()})
}

func TestBuildStructuralCachedThenSanitizeFromCache(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	triples := []*model.Triple{
		{ID: "t1", JobID: 1, Subject: "the model", Predicate: "uses", Object: "a dataset"},
	}

	g, err := BuildStructuralCached(ctx, c, 1, triples)
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)

	cached, found, err := c.GetStructuralGraph(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, g, cached)

	result, err := SanitizeFromCache(ctx, c, 1, config.GraphRulesConfig{})
	require.NoError(t, err)
	require.Len(t, result.Graph.Edges, 1)

	_, found, err = c.GetStructuralGraph(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found, "structural graph cache entry must be deleted after consumption")
}

func TestSanitizeFromCacheErrorsWhenNothingCached(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, err := SanitizeFromCache(ctx, c, 999, config.GraphRulesConfig{})
	assert.Error(t, err)
}
