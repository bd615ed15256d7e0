package model

import "time"

// IngestionSource is a unit of text to ingest. RawText is the canonical
// post-extraction/refinement text; no downstream stage may bypass it.
type IngestionSource struct {
	ID        string    `json:"id"`
	JobID     int64     `json:"job_id"`
	SourceType string   `json:"source_type"` // user_text | pdf_text | paper_abstract | api_text
	SourceRef string    `json:"source_ref"`
	RawText   string    `json:"raw_text"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// TextBlock is a slice of one IngestionSource. TriplesExtracted is
// monotone true-once; BlockOrder is stable.
type TextBlock struct {
	ID                   string `json:"id"`
	JobID                int64  `json:"job_id"`
	IngestionSourceID    string `json:"ingestion_source_id"`
	BlockText            string `json:"block_text"`
	BlockOrder           int    `json:"block_order"`
	SegmentationStrategy string `json:"segmentation_strategy"`
	TriplesExtracted     bool   `json:"triples_extracted"`
}

// Triple is an extracted (subject, predicate, object) with provenance.
// Immutable.
type Triple struct {
	ID                string    `json:"id"`
	JobID             int64     `json:"job_id"`
	BlockID           string    `json:"block_id"`
	IngestionSourceID string    `json:"ingestion_source_id"`
	Subject           string    `json:"subject"`
	Predicate         string    `json:"predicate"`
	Object            string    `json:"object"`
	ExtractorName     string    `json:"extractor_name"`
	CreatedAt         time.Time `json:"created_at"`
}

// Region is a unit of extracted text returned by an Extractor, scoped to a
// page and a whitelisted section type.
type Region struct {
	Text string `json:"text"`
	Type string `json:"type"` // abstract, introduction, body, methods, results, conclusion
	Page int    `json:"page"`
}
