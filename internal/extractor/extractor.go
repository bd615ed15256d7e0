// Package extractor implements the Extractor external collaborator (§6):
// ExtractRegions(input, config) -> []Region, selected by file type, with
// PDFs segmented by a whitelisted section-header scan and early
// termination on excluded headers. Grounded on
// original_source/backend/app/ingestion/adapters/{base,pdf,text,factory}.py.
package extractor

import (
	"path/filepath"
	"strings"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

// Region is a physically isolated span of extracted text with the
// section label it was found under (e.g. "abstract", "body").
type Region = model.Region

// Extractor reads a file (or, for text sources, takes the raw string
// directly) and returns its whitelisted regions in reading order. No
// implementation writes back to storage — the ingestion pipeline owns
// concatenating regions and persisting IngestionSource.raw_text.
type Extractor interface {
	ExtractRegions(input string, cfg config.ExtractionConfig) ([]Region, error)
}

// regionMarkers maps a lowercased, punctuation-stripped heading to its
// canonical region name, mirroring pdf.py's REGION_MARKERS.
var regionMarkers = map[string]string{
	"abstract":     "abstract",
	"introduction": "introduction",
	"conclusion":   "conclusion",
	"conclusions":  "conclusion",
	"results":      "results",
	"result":       "results",
	"method":       "methods",
	"methods":      "methods",
	"methodology":  "methods",
	"discussion":   "discussion",
	"acknowledgements": "acknowledgements",
	"acknowledgments":  "acknowledgements",
}

// ForSource routes a source_type/source_ref pair to the adapter that
// understands it, mirroring factory.py's get_adapter_for_source.
func ForSource(sourceType, sourceRef string) Extractor {
	switch strings.ToLower(sourceType) {
	case "pdf_text":
		return &PDFExtractor{}
	case "user_text", "paper_abstract", "api_text":
		return &TextExtractor{}
	}
	if strings.Contains(sourceRef, "file:") {
		path := strings.TrimPrefix(sourceRef, "file:")
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			return &PDFExtractor{}
		}
	}
	return &TextExtractor{}
}
