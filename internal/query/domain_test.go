package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/model"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Generate(_ context.Context, _ string, _ llm.GenerateOptions) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testDomainConfig() config.DomainResolverConfig {
	return config.DomainResolverConfig{
		AllowList: []config.DomainAllowListEntry{
			{Domain: "biomedical", Keywords: []string{"gene", "protein"}},
			{Domain: "computer_science", Keywords: []string{"algorithm", "network"}},
		},
		CandidateDomains: []string{"biomedical", "computer_science", "physics"},
		DefaultDomain:    "computer_science",
	}
}

func TestResolveDomainAllowListMatchesSourceKeyword(t *testing.T) {
	h := model.Hypothesis{Source: "BRCA1 gene", Target: "tumor suppression"}
	provider := &fakeLLM{}

	domain, method := ResolveDomain(context.Background(), provider, h, testDomainConfig())

	assert.Equal(t, "biomedical", domain)
	assert.Equal(t, ResolutionAllowList, method)
	assert.Equal(t, 0, provider.calls)
}

func TestResolveDomainFallsBackToLLMWhenNoAllowListMatch(t *testing.T) {
	h := model.Hypothesis{Source: "quark", Target: "gluon"}
	provider := &fakeLLM{response: "physics"}

	domain, method := ResolveDomain(context.Background(), provider, h, testDomainConfig())

	assert.Equal(t, "physics", domain)
	assert.Equal(t, ResolutionLLMFallback, method)
	assert.Equal(t, 1, provider.calls)
}

func TestResolveDomainLLMUnparsableDefaultsToConfiguredDomain(t *testing.T) {
	h := model.Hypothesis{Source: "quark", Target: "gluon"}
	provider := &fakeLLM{response: "not a real domain"}

	domain, _ := ResolveDomain(context.Background(), provider, h, testDomainConfig())

	assert.Equal(t, "computer_science", domain)
}

func TestResolveDomainLLMErrorDefaultsToConfiguredDomain(t *testing.T) {
	h := model.Hypothesis{Source: "quark", Target: "gluon"}
	provider := &fakeLLM{err: errors.New("boom")}

	domain, method := ResolveDomain(context.Background(), provider, h, testDomainConfig())

	assert.Equal(t, "computer_science", domain)
	assert.Equal(t, ResolutionLLMFallback, method)
}

func TestHypothesisKeywordsTruncatesExplanationTo20Words(t *testing.T) {
	h := model.Hypothesis{Explanation: "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty twentyone twentytwo"}

	kws := hypothesisKeywords(h)

	assert.NotContains(t, kws, "twentytwo")
}
