package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

// HypothesisSignature is a deterministic identifier for a hypothesis's
// endpoint pair only — path and explanation wording never affect it, so
// re-running hypothesis generation with a differently-worded path still
// resolves to the same SearchQuery.
func HypothesisSignature(h model.Hypothesis, length int) string {
	key := strings.ToLower(h.Source) + "→" + strings.ToLower(h.Target)
	sum := sha256.Sum256([]byte(key))
	hexSum := hex.EncodeToString(sum[:])
	if length <= 0 || length > len(hexSum) {
		return hexSum
	}
	return hexSum[:length]
}

func defaultQueryText(h model.Hypothesis) string {
	return fmt.Sprintf("relationship between %s and %s", h.Source, h.Target)
}

// GetOrCreateSearchQuery resolves (or creates) the stable SearchQuery
// record for a hypothesis's endpoint pair. On creation it runs the
// Domain Resolver and records the resolution method alongside the new
// row.
func GetOrCreateSearchQuery(ctx context.Context, st *store.Store, provider llm.Provider, jobID int64, h model.Hypothesis, cfg config.QueryOrchestratorConfig, domainCfg config.DomainResolverConfig) (*model.SearchQuery, error) {
	signature := HypothesisSignature(h, cfg.SignatureLength)
	configSnapshot := map[string]any{
		"signature_length":    cfg.SignatureLength,
		"initial_reputation":  cfg.InitialReputation,
		"max_reuse_attempts":  cfg.MaxReuseAttempts,
		"fetch_batch_size":    cfg.FetchBatchSize,
	}

	sq, err := st.GetOrCreateSearchQuery(ctx, jobID, signature, defaultQueryText(h), configSnapshot)
	if err != nil {
		return nil, fmt.Errorf("get or create search query: %w", err)
	}
	if sq.ResolvedDomain != "" {
		return sq, nil
	}

	domain, method := ResolveDomain(ctx, provider, h, domainCfg)
	if err := st.SetSearchQueryDomain(ctx, sq.ID, domain, method); err != nil {
		return nil, fmt.Errorf("setting search query domain: %w", err)
	}
	sq.ResolvedDomain = domain
	sq.DomainResolutionMethod = method
	return sq, nil
}

// ShouldRunQuery decides whether a SearchQuery should be fetched against
// this cycle, and why.
func ShouldRunQuery(ctx context.Context, st *store.Store, sq *model.SearchQuery, cfg config.QueryOrchestratorConfig) (bool, string, error) {
	switch sq.Status {
	case model.SearchQueryBlocked:
		return false, "blocked", nil
	case model.SearchQueryExhausted:
		return false, "exhausted", nil
	case model.SearchQueryNew:
		return true, "initial_attempt", nil
	case model.SearchQueryReusable:
		runs, err := st.ListUnattributedSearchQueryRuns(ctx, sq.JobID)
		if err != nil {
			return false, "", fmt.Errorf("listing runs for reuse check: %w", err)
		}
		count := 0
		for _, r := range runs {
			if r.SearchQueryID == sq.ID {
				count++
			}
		}
		if count < cfg.MaxReuseAttempts {
			return true, "reuse", nil
		}
		return false, "reuse_exhausted", nil
	default:
		return false, "unknown_status", nil
	}
}

// leadGroup is one (source, target) endpoint pair among candidate
// hypotheses, with its leader (the highest-confidence member) and
// whether any member passed the filter.
type leadGroup struct {
	leader     model.Hypothesis
	confidence int
	passed     bool
}

func groupKey(h model.Hypothesis) string {
	return strings.ToLower(h.Source) + "→" + strings.ToLower(h.Target)
}

// SelectTopKLeads implements the "grouped diversity" lead selection:
// group candidates by endpoint pair, a group's confidence is the max
// among its members and it counts as "passed" if any member passed the
// filter. Passed groups are preferred over promising-only groups; each
// tier is sorted descending by confidence; K slots are filled passed
// first, then promising. Each selected group contributes its leader
// (highest-confidence member).
func SelectTopKLeads(hypotheses []model.Hypothesis, k int) []model.Hypothesis {
	groups := make(map[string]*leadGroup)
	order := make([]string, 0)
	for _, h := range hypotheses {
		if !h.PassedFilter && !h.Promising() {
			continue
		}
		key := groupKey(h)
		g, ok := groups[key]
		if !ok {
			g = &leadGroup{leader: h, confidence: h.Confidence, passed: h.PassedFilter}
			groups[key] = g
			order = append(order, key)
			continue
		}
		if h.PassedFilter {
			g.passed = true
		}
		if h.Confidence > g.confidence {
			g.confidence = h.Confidence
			g.leader = h
		}
	}

	var passedGroups, promisingGroups []*leadGroup
	for _, key := range order {
		g := groups[key]
		if g.passed {
			passedGroups = append(passedGroups, g)
		} else {
			promisingGroups = append(promisingGroups, g)
		}
	}
	sort.SliceStable(passedGroups, func(i, j int) bool { return passedGroups[i].confidence > passedGroups[j].confidence })
	sort.SliceStable(promisingGroups, func(i, j int) bool { return promisingGroups[i].confidence > promisingGroups[j].confidence })

	leads := make([]model.Hypothesis, 0, k)
	for _, g := range passedGroups {
		if len(leads) >= k {
			return leads
		}
		leads = append(leads, g.leader)
	}
	for _, g := range promisingGroups {
		if len(leads) >= k {
			return leads
		}
		leads = append(leads, g.leader)
	}
	return leads
}
