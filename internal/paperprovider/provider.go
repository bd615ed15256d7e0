// Package paperprovider implements the PaperProvider external collaborator
// (§6): fetch({query, domain?, batch_size}) -> []Paper, honoring batch_size
// at the API level. Grounded on
// original_source/backend/app/fetching/providers/{base,arxiv,semantic_scholar}.py.
package paperprovider

import (
	"context"
	"time"
)

// FetchParams mirrors the dict the original passes to a provider's fetch
// method.
type FetchParams struct {
	Query     string
	Domain    string
	BatchSize int
}

// FetchedPaper is a provider-returned paper before canonicalization into
// model.Paper (fingerprinting happens in the orchestrator, §4.9b).
type FetchedPaper struct {
	Title        string
	Abstract     string
	Authors      []string
	Year         int
	Venue        string
	DOI          string
	ExternalIDs  map[string]string
	Source       string
	PDFURL       string
}

// Provider is the PaperProvider external collaborator. Implementations
// must never return more than params.BatchSize papers.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, params FetchParams) ([]FetchedPaper, error)
}

// rateLimiter enforces a minimum inter-call sleep per provider instance
// (§5: "per-provider minimum inter-call sleep"), grounded on
// semantic_scholar.py's _wait_for_rate_limit.
type rateLimiter struct {
	minInterval time.Time
	interval    time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) wait(ctx context.Context) error {
	if r.minInterval.IsZero() {
		r.minInterval = time.Now()
		return nil
	}
	elapsed := time.Since(r.minInterval)
	if elapsed < r.interval {
		select {
		case <-time.After(r.interval - elapsed):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.minInterval = time.Now()
	return nil
}
