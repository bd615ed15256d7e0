package query

import (
	"context"
	"fmt"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/paperprovider"
	"github.com/litreview/engine/internal/store"
)

// ProviderRouter selects a PaperProvider for a resolved domain (§4.9b:
// "implemented by at least two concrete collaborators selected per
// resolved domain"). Domains with no explicit mapping fall back to
// Default.
type ProviderRouter struct {
	byDomain map[string]paperprovider.Provider
	Default  paperprovider.Provider
}

// NewProviderRouter builds a router over the given domain->provider
// mapping and fallback default.
func NewProviderRouter(byDomain map[string]paperprovider.Provider, fallback paperprovider.Provider) *ProviderRouter {
	return &ProviderRouter{byDomain: byDomain, Default: fallback}
}

func (r *ProviderRouter) For(domain string) paperprovider.Provider {
	if p, ok := r.byDomain[domain]; ok {
		return p
	}
	return r.Default
}

// seenPaperIDs returns the union of every prior run's fetched_paper_ids
// for a job, the dedup scope execute_fetch_more step 2 requires.
func seenPaperIDs(ctx context.Context, st *store.Store, jobID int64) (map[string]bool, error) {
	runs, err := st.ListSearchQueryRunsByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading prior runs: %w", err)
	}
	seen := make(map[string]bool)
	for _, r := range runs {
		for _, id := range r.FetchedPaperIDs {
			seen[id] = true
		}
	}
	return seen, nil
}

// FetchResult summarizes one lead's fetch cycle.
type FetchResult struct {
	SearchQueryID string
	Run           *model.SearchQueryRun
	NewPapers     []*model.Paper
}

// ExecuteFetchMore implements C9's execute_fetch_more: select top-K
// leads from the candidate hypotheses, fetch each against its
// (possibly newly resolved) domain's provider, dedupe globally against
// every paper already seen by this job, persist new papers and
// paper_abstract IngestionSource rows, and record one SearchQueryRun
// per lead that ShouldRunQuery lets run (skipped leads record none),
// with signal_delta left nil. Does not transition job status.
func ExecuteFetchMore(ctx context.Context, st *store.Store, provider llm.Provider, router *ProviderRouter, jobID int64, hypotheses []model.Hypothesis, cfg config.QueryOrchestratorConfig, domainCfg config.DomainResolverConfig) ([]FetchResult, error) {
	leads := SelectTopKLeads(hypotheses, cfg.TopKHypotheses)
	if len(leads) == 0 {
		return nil, nil
	}

	seen, err := seenPaperIDs(ctx, st, jobID)
	if err != nil {
		return nil, err
	}

	results := make([]FetchResult, 0, len(leads))
	for _, lead := range leads {
		sq, err := GetOrCreateSearchQuery(ctx, st, provider, jobID, lead, cfg, domainCfg)
		if err != nil {
			return results, fmt.Errorf("resolving search query for lead %s→%s: %w", lead.Source, lead.Target, err)
		}

		shouldRun, reason, err := ShouldRunQuery(ctx, st, sq, cfg)
		if err != nil {
			return results, err
		}
		if !shouldRun {
			continue
		}

		p := router.For(sq.ResolvedDomain)
		fetched, err := p.Fetch(ctx, paperprovider.FetchParams{
			Query:     sq.QueryText,
			Domain:    sq.ResolvedDomain,
			BatchSize: cfg.FetchBatchSize,
		})
		if err != nil {
			return results, fmt.Errorf("fetching for search query %s: %w", sq.ID, err)
		}

		var newPaperIDs []string
		var newPapers []*model.Paper
		for _, fp := range fetched {
			paper := toModelPaper(fp)
			stored, err := st.UpsertPaper(ctx, paper)
			if err != nil {
				return results, fmt.Errorf("upserting paper: %w", err)
			}
			if !seen[stored.ID] {
				seen[stored.ID] = true
				newPaperIDs = append(newPaperIDs, stored.ID)
				newPapers = append(newPapers, stored)

				if stored.Abstract != "" {
					if _, err := st.CreateIngestionSource(ctx, model.IngestionSource{
						JobID:      jobID,
						SourceType: "paper_abstract",
						SourceRef:  "paper:" + stored.ID,
						RawText:    stored.Abstract,
					}); err != nil {
						return results, fmt.Errorf("creating ingestion source for paper %s: %w", stored.ID, err)
					}
				}
			}
		}

		createdRun, err := st.CreateSearchQueryRun(ctx, model.SearchQueryRun{
			SearchQueryID:    sq.ID,
			JobID:            jobID,
			ProviderUsed:     p.Name(),
			Reason:           reason,
			FetchedPaperIDs:  newPaperIDs,
			AcceptedPaperIDs: newPaperIDs,
		})
		if err != nil {
			return results, fmt.Errorf("recording search query run: %w", err)
		}

		results = append(results, FetchResult{SearchQueryID: sq.ID, Run: createdRun, NewPapers: newPapers})
	}
	return results, nil
}

func toModelPaper(fp paperprovider.FetchedPaper) model.Paper {
	p := model.Paper{
		Title:       fp.Title,
		Abstract:    fp.Abstract,
		Authors:     fp.Authors,
		Venue:       fp.Venue,
		ExternalIDs: fp.ExternalIDs,
		Source:      fp.Source,
		Fingerprint: paperprovider.FingerprintOf(fp),
	}
	if fp.Year != 0 {
		year := fp.Year
		p.Year = &year
	}
	if fp.DOI != "" {
		doi := fp.DOI
		p.DOI = &doi
	}
	if fp.PDFURL != "" {
		url := fp.PDFURL
		p.PDFURL = &url
	}
	return p
}
