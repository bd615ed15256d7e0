package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/litreview/engine/internal/cache"
	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/stageerr"
)

// structuralGraphTTL bounds how long a structural projection waits in
// Redis for the sanitization stage to consume it (§5: "accessed only by
// the stage that produced it and the stage immediately after").
const structuralGraphTTL = 30 * time.Minute

// BuildStructuralCached projects raw triples into a structural graph and
// writes it to the per-job Redis cache for the sanitization stage
// (STRUCTURAL_GRAPH_BUILT handler) to pick up immediately after.
func BuildStructuralCached(ctx context.Context, c *cache.Cache, jobID int64, triples []*model.Triple) (model.Graph, error) {
	g := BuildStructural(triples)
	if err := c.PutStructuralGraph(ctx, jobID, g, structuralGraphTTL); err != nil {
		return model.Graph{}, fmt.Errorf("caching structural graph for job %d: %w", jobID, err)
	}
	return g, nil
}

// SanitizeFromCache reads the job's cached structural graph, sanitizes
// it, and deletes the cache entry once consumed (STRUCTURAL_GRAPH_BUILT
// handler).
func SanitizeFromCache(ctx context.Context, c *cache.Cache, jobID int64, rules config.GraphRulesConfig) (SanitizeResult, error) {
	g, found, err := c.GetStructuralGraph(ctx, jobID)
	if err != nil {
		return SanitizeResult{}, fmt.Errorf("reading cached structural graph for job %d: %w", jobID, err)
	}
	if !found {
		return SanitizeResult{}, fmt.Errorf("graph: no cached structural graph for job %d: %w", jobID, stageerr.ErrPreconditionFailed)
	}
	if err := c.DeleteStructuralGraph(ctx, jobID); err != nil {
		return SanitizeResult{}, fmt.Errorf("deleting cached structural graph for job %d: %w", jobID, err)
	}
	return Sanitize(g, rules), nil
}
