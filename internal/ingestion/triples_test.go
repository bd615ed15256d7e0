package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTriplesFromBlockParsesPipeDelimitedLines(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"gradient boosting | improves | accuracy\nthe model | uses | a dataset",
	}}

	triples, err := ExtractTriplesFromBlock(context.Background(), provider, "some block text")

	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, "gradient boosting", triples[0].Subject)
	assert.Equal(t, "improves", triples[0].Predicate)
	assert.Equal(t, "accuracy", triples[0].Object)
	assert.Equal(t, extractorName, triples[0].ExtractorName)
}

func TestExtractTriplesFromBlockRecoversFromSurroundingCommentary(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"Sure, here are the triples:\nmodel | uses | dataset\nThat's all!",
	}}

	triples, err := ExtractTriplesFromBlock(context.Background(), provider, "block text")

	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, "model", triples[0].Subject)
}

func TestExtractTriplesFromBlockDropsMalformedLinesIndependently(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"model | uses | dataset\nthis line has only one pipe\nmodel | evaluates | metric",
	}}

	triples, err := ExtractTriplesFromBlock(context.Background(), provider, "block text")

	require.NoError(t, err)
	require.Len(t, triples, 2)
}

func TestExtractTriplesFromBlockRejectsOverlongField(t *testing.T) {
	huge := strings.Repeat("x", maxTripleFieldLen+1)
	provider := &fakeProvider{responses: []string{
		"model | uses | " + huge,
	}}

	triples, err := ExtractTriplesFromBlock(context.Background(), provider, "block text")

	require.NoError(t, err)
	assert.Empty(t, triples)
}

func TestExtractTriplesFromBlockEmptyResponseYieldsNoTriples(t *testing.T) {
	provider := &fakeProvider{responses: []string{""}}

	triples, err := ExtractTriplesFromBlock(context.Background(), provider, "block text")

	require.NoError(t, err)
	assert.Nil(t, triples)
}

func TestExtractTriplesFromBlockEmptyInputShortCircuits(t *testing.T) {
	provider := &fakeProvider{}

	triples, err := ExtractTriplesFromBlock(context.Background(), provider, "   ")

	require.NoError(t, err)
	assert.Nil(t, triples)
	assert.Equal(t, 0, provider.calls)
}
