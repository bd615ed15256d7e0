package paperprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2101.00001v1</id>
    <title>  Graph Neural Networks  </title>
    <summary>  A survey of graph neural networks.  </summary>
    <published>2021-01-01T00:00:00Z</published>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
  </entry>
</feed>`

func TestArxivProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("max_results"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sampleAtomFeed))
	}))
	defer server.Close()

	p := NewArxivProvider()
	p.baseURL = server.URL

	papers, err := p.Fetch(context.Background(), FetchParams{Query: "graph neural networks", BatchSize: 3})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	got := papers[0]
	assert.Equal(t, "Graph Neural Networks", got.Title)
	assert.Equal(t, "A survey of graph neural networks.", got.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, got.Authors)
	assert.Equal(t, 2021, got.Year)
	assert.Equal(t, "arXiv", got.Venue)
	assert.Equal(t, "2101.00001v1", got.ExternalIDs["arxiv_id"])
	assert.Equal(t, "https://arxiv.org/pdf/2101.00001v1.pdf", got.PDFURL)
}

func TestArxivProviderEmptyQuery(t *testing.T) {
	p := NewArxivProvider()
	papers, err := p.Fetch(context.Background(), FetchParams{})
	require.NoError(t, err)
	assert.Nil(t, papers)
}
