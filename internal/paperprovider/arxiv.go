package paperprovider

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ArxivProvider fetches papers from the arXiv Atom API, enforcing
// batch_size both in the request (max_results) and defensively while
// parsing entries. Grounded on
// original_source/backend/app/fetching/providers/arxiv.py.
type ArxivProvider struct {
	baseURL string
	client  *http.Client
}

// NewArxivProvider builds a provider against the public arXiv API.
func NewArxivProvider() *ArxivProvider {
	return &ArxivProvider{
		baseURL: "http://export.arxiv.org/api/query",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *ArxivProvider) Name() string { return "arxiv" }

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// Fetch queries arXiv, never returning more than params.BatchSize papers.
func (p *ArxivProvider) Fetch(ctx context.Context, params FetchParams) ([]FetchedPaper, error) {
	if params.Query == "" {
		return nil, nil
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	searchQuery := "all:" + params.Query
	if params.Domain != "" {
		searchQuery += " AND cat:" + params.Domain
	}

	q := url.Values{}
	q.Set("search_query", searchQuery)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(batchSize))
	q.Set("sortBy", "submittedDate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building arxiv request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting arxiv: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading arxiv response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing arxiv feed: %w", err)
	}

	papers := make([]FetchedPaper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if len(papers) >= batchSize {
			break
		}
		arxivID := e.ID
		if idx := strings.LastIndex(arxivID, "/abs/"); idx >= 0 {
			arxivID = arxivID[idx+len("/abs/"):]
		}
		var year int
		if len(e.Published) >= 4 {
			year, _ = strconv.Atoi(e.Published[:4])
		}
		authors := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		papers = append(papers, FetchedPaper{
			Title:       strings.TrimSpace(e.Title),
			Abstract:    strings.TrimSpace(e.Summary),
			Authors:     authors,
			Year:        year,
			Venue:       "arXiv",
			ExternalIDs: map[string]string{"arxiv_id": arxivID},
			Source:      "arxiv",
			PDFURL:      fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", arxivID),
		})
	}
	return papers, nil
}
