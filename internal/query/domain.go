// Package query implements the Search-Query Orchestrator (C9) and its
// Domain Resolver (C9a): turning a job's active hypothesis set into
// stable, reusable SearchQuery records and driving paper-provider
// fetches against them. Grounded on
// original_source/backend/app/domains/resolver.py (LLM-only generation)
// and original_source/app/domains/resolver.py (older deterministic +
// LLM-fallback generation) — this package keeps the older generation's
// two-tier shape, since §4.9a calls for exactly that.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/model"
)

// Resolution methods recorded on SearchQuery.domain_resolution_method.
const (
	ResolutionAllowList   = "allow_list"
	ResolutionLLMFallback = "llm_fallback"
)

// domainClassificationPrompt is the closed-set fallback prompt: the
// candidate domains are enumerated and the model is asked to answer
// with exactly one of them.
const domainClassificationPrompt = `Classify the research relationship below into exactly one of these domains: %s.

Source concept: %s
Target concept: %s
Explanation: %s

Respond with only the single domain label, nothing else.`

// hypothesisKeywords collects the lowercased text an allow-list match
// runs against: source, target, path nodes, and the first words of the
// explanation, mirroring get_hypothesis_keywords.
func hypothesisKeywords(h model.Hypothesis) []string {
	keywords := make([]string, 0, len(h.Path)+4)
	if h.Source != "" {
		keywords = append(keywords, strings.ToLower(h.Source))
	}
	if h.Target != "" {
		keywords = append(keywords, strings.ToLower(h.Target))
	}
	for _, node := range h.Path {
		keywords = append(keywords, strings.ToLower(node))
	}
	if h.Explanation != "" {
		words := strings.Fields(strings.ToLower(h.Explanation))
		if len(words) > 20 {
			words = words[:20]
		}
		keywords = append(keywords, words...)
	}
	return keywords
}

// resolveDeterministic returns the first allow-list entry any keyword
// of which appears as a substring of any hypothesis keyword. Entries
// are checked in configured order, first match wins.
func resolveDeterministic(h model.Hypothesis, cfg config.DomainResolverConfig) (string, bool) {
	keywords := hypothesisKeywords(h)
	for _, entry := range cfg.AllowList {
		for _, kw := range entry.Keywords {
			kw = strings.ToLower(kw)
			for _, hk := range keywords {
				if strings.Contains(hk, kw) {
					return entry.Domain, true
				}
			}
		}
	}
	return "", false
}

// resolveLLMFallback asks the LLM to pick from the configured candidate
// domains, matching the response by substring against the candidate
// list (case-insensitive) and defaulting to DefaultDomain on any
// unparsable or empty response.
func resolveLLMFallback(ctx context.Context, provider llm.Provider, h model.Hypothesis, cfg config.DomainResolverConfig) string {
	prompt := fmt.Sprintf(domainClassificationPrompt, strings.Join(cfg.CandidateDomains, ", "), h.Source, h.Target, h.Explanation)
	resp, err := provider.Generate(ctx, prompt, llm.GenerateOptions{})
	if err != nil {
		return cfg.DefaultDomain
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "" {
		return cfg.DefaultDomain
	}
	for _, candidate := range cfg.CandidateDomains {
		if strings.Contains(resp, strings.ToLower(candidate)) {
			return candidate
		}
	}
	return cfg.DefaultDomain
}

// ResolveDomain implements C9a's two-stage resolution: a deterministic
// keyword allow-list check first (fast path, zero external calls), then
// a closed-set LLM fallback. Returns the resolved domain and the method
// that produced it.
func ResolveDomain(ctx context.Context, provider llm.Provider, h model.Hypothesis, cfg config.DomainResolverConfig) (domain, method string) {
	if d, ok := resolveDeterministic(h, cfg); ok {
		return d, ResolutionAllowList
	}
	return resolveLLMFallback(ctx, provider, h, cfg), ResolutionLLMFallback
}
