package paperprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SemanticScholarProvider fetches papers from the Semantic Scholar Graph
// API, rate-limited to one call per rateInterval. Grounded on
// original_source/backend/app/fetching/providers/semantic_scholar.py.
type SemanticScholarProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rateLimiter
}

// NewSemanticScholarProvider builds a provider; apiKey may be empty (the
// backend falls back to unauthenticated, lower-rate access).
func NewSemanticScholarProvider(apiKey string, rateInterval time.Duration) *SemanticScholarProvider {
	if rateInterval <= 0 {
		rateInterval = 2 * time.Second
	}
	return &SemanticScholarProvider{
		baseURL: "https://api.semanticscholar.org/graph/v1/paper/search",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: newRateLimiter(rateInterval),
	}
}

func (p *SemanticScholarProvider) Name() string { return "semantic_scholar" }

type s2Response struct {
	Data []s2Paper `json:"data"`
}

type s2Paper struct {
	Title        string            `json:"title"`
	Abstract     string            `json:"abstract"`
	Year         int               `json:"year"`
	Venue        string            `json:"venue"`
	Authors      []s2Author        `json:"authors"`
	ExternalIDs  map[string]string `json:"externalIds"`
	OpenAccessPD *s2OpenAccessPDF  `json:"openAccessPdf"`
}

type s2Author struct {
	Name string `json:"name"`
}

type s2OpenAccessPDF struct {
	URL string `json:"url"`
}

// Fetch queries Semantic Scholar. When an API key is set and the keyed
// request fails for any reason (a 403 among them), it retries once
// without the key (graceful degradation, matching the Python provider's
// fallback). A 429 is returned as an error; there is no backoff or
// further retry on it.
func (p *SemanticScholarProvider) Fetch(ctx context.Context, params FetchParams) ([]FetchedPaper, error) {
	if params.Query == "" {
		return nil, nil
	}
	if err := p.limiter.wait(ctx); err != nil {
		return nil, err
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	papers, err := p.doFetch(ctx, params.Query, batchSize, p.apiKey)
	if err != nil && p.apiKey != "" {
		return p.doFetch(ctx, params.Query, batchSize, "")
	}
	return papers, err
}

func (p *SemanticScholarProvider) doFetch(ctx context.Context, query string, limit int, apiKey string) ([]FetchedPaper, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", "title,abstract,authors,year,venue,externalIds,openAccessPdf")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building semantic scholar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "litreview-engine")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting semantic scholar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden && apiKey != "" {
		return nil, fmt.Errorf("semantic scholar rejected api key (403)")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("semantic scholar rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic scholar returned status %d", resp.StatusCode)
	}

	var parsed s2Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing semantic scholar response: %w", err)
	}

	papers := make([]FetchedPaper, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if len(papers) >= limit {
			break
		}
		authors := make([]string, 0, len(d.Authors))
		for _, a := range d.Authors {
			authors = append(authors, a.Name)
		}
		var pdfURL string
		if d.OpenAccessPD != nil {
			pdfURL = d.OpenAccessPD.URL
		}
		doi := d.ExternalIDs["DOI"]
		papers = append(papers, FetchedPaper{
			Title:       d.Title,
			Abstract:    d.Abstract,
			Authors:     authors,
			Year:        d.Year,
			Venue:       d.Venue,
			DOI:         doi,
			ExternalIDs: d.ExternalIDs,
			Source:      "semantic_scholar",
			PDFURL:      pdfURL,
		})
	}
	return papers, nil
}
