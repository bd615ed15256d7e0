package paperprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleS2Response = `{
  "data": [
    {
      "title": "Attention Is All You Need",
      "abstract": "We propose a new architecture.",
      "year": 2017,
      "venue": "NeurIPS",
      "authors": [{"name": "Ashish Vaswani"}],
      "externalIds": {"DOI": "10.0000/abc"},
      "openAccessPdf": {"url": "https://example.org/paper.pdf"}
    }
  ]
}`

func TestSemanticScholarProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sampleS2Response))
	}))
	defer server.Close()

	p := NewSemanticScholarProvider("secret-key", time.Millisecond)
	p.baseURL = server.URL

	papers, err := p.Fetch(context.Background(), FetchParams{Query: "transformers", BatchSize: 5})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	got := papers[0]
	assert.Equal(t, "Attention Is All You Need", got.Title)
	assert.Equal(t, []string{"Ashish Vaswani"}, got.Authors)
	assert.Equal(t, 2017, got.Year)
	assert.Equal(t, "10.0000/abc", got.DOI)
	assert.Equal(t, "https://example.org/paper.pdf", got.PDFURL)
	assert.Equal(t, "semantic_scholar", got.Source)
}

func TestSemanticScholarProviderFallsBackWithoutKeyOn403(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("x-api-key") != "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sampleS2Response))
	}))
	defer server.Close()

	p := NewSemanticScholarProvider("bad-key", time.Millisecond)
	p.baseURL = server.URL

	papers, err := p.Fetch(context.Background(), FetchParams{Query: "transformers", BatchSize: 5})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, 2, calls)
}
