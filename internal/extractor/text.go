package extractor

import (
	"os"
	"strings"

	"github.com/litreview/engine/internal/config"
)

// TextExtractor handles raw text, user-submitted text, paper abstracts,
// and API text: no layout analysis applies, so the entire input becomes
// a single "body" region. Grounded on adapters/text.py's
// SimpleTextAdapter, including its dual file-path-or-raw-string input.
type TextExtractor struct{}

func (TextExtractor) ExtractRegions(input string, _ config.ExtractionConfig) ([]Region, error) {
	if data, err := os.ReadFile(input); err == nil {
		return []Region{{Text: string(data), Type: "body", Page: 1}}, nil
	}
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	return []Region{{Text: input, Type: "body", Page: 1}}, nil
}
