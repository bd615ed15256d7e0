package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/llm"
)

type fakeProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeProvider) Generate(_ context.Context, _ string, _ llm.GenerateOptions) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func testRefinementConfig() config.RefinementConfig {
	return config.RefinementConfig{
		NeedsRefinementTypes: []string{"pdf_text", "user_text"},
		MaxTokensPerSpan:     1000,
		Temperature:          0,
		MaxRetries:           3,
	}
}

func TestNeedsRefinementChecksList(t *testing.T) {
	cfg := testRefinementConfig()
	assert.True(t, needsRefinement("pdf_text", cfg))
	assert.False(t, needsRefinement("paper_abstract", cfg))
}

func TestRefineTextScrubsGarbageMarkers(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Here is your cleaned text:\nThe model improves accuracy."}}

	out, err := RefineText(context.Background(), provider, "{text}", "raw input.", testRefinementConfig())

	require.NoError(t, err)
	assert.Equal(t, "The model improves accuracy.", out)
}

func TestRefineTextRetriesOnTruncation(t *testing.T) {
	longSpan := strings.Repeat("a", 250)
	provider := &fakeProvider{responses: []string{
		"This looks truncated mid",
		"This is complete.",
	}}

	out, err := RefineText(context.Background(), provider, "{text}", longSpan, testRefinementConfig())

	require.NoError(t, err)
	assert.Equal(t, "This is complete.", out)
	assert.Equal(t, 2, provider.calls)
}

func TestRefineTextExhaustsRetriesAndFails(t *testing.T) {
	longSpan := strings.Repeat("a", 250)
	provider := &fakeProvider{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}

	_, err := RefineText(context.Background(), provider, "{text}", longSpan, testRefinementConfig())

	assert.Error(t, err)
}

func TestRefineTextEmptyInputShortCircuits(t *testing.T) {
	provider := &fakeProvider{}

	out, err := RefineText(context.Background(), provider, "{text}", "   ", testRefinementConfig())

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, provider.calls)
}

func TestSplitIntoSpansRespectsParagraphBoundary(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50)

	spans := splitIntoSpans(text, 60)

	require.Len(t, spans, 2)
	assert.Equal(t, strings.Repeat("a", 50), spans[0])
	assert.Equal(t, strings.Repeat("b", 50), spans[1])
}
