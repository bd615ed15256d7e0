package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
)

func testExtractionConfig() config.ExtractionConfig {
	return config.ExtractionConfig{
		WhitelistedRegions:   []string{"abstract", "introduction", "body", "methods", "results", "conclusion"},
		ExcludedRegions:      []string{"references", "bibliography"},
		ColumnWidthThreshold: 20,
		FallbackToFullText:   true,
	}
}

func TestPDFExtractorWhitelistedRegions(t *testing.T) {
	input := "Abstract\nThis paper studies graphs.\nIntroduction\nGraphs are everywhere.\nAcknowledgements\nThanks to everyone."

	regions, err := PDFExtractor{}.ExtractRegions(input, testExtractionConfig())
	require.NoError(t, err)

	require.Len(t, regions, 2)
	assert.Equal(t, "abstract", regions[0].Type)
	assert.Equal(t, "This paper studies graphs.", regions[0].Text)
	assert.Equal(t, "introduction", regions[1].Type)
	assert.Equal(t, "Graphs are everywhere.", regions[1].Text)
}

func TestPDFExtractorStopsOnExcludedHeading(t *testing.T) {
	input := "Abstract\nFirst sentence.\nReferences\n[1] Someone, et al."

	regions, err := PDFExtractor{}.ExtractRegions(input, testExtractionConfig())
	require.NoError(t, err)

	require.Len(t, regions, 1)
	assert.Equal(t, "abstract", regions[0].Type)
	assert.Equal(t, "First sentence.", regions[0].Text)
}

func TestPDFExtractorFallsBackToFullText(t *testing.T) {
	input := "Just some plain text with no recognizable section headings at all."

	regions, err := PDFExtractor{}.ExtractRegions(input, testExtractionConfig())
	require.NoError(t, err)

	require.Len(t, regions, 1)
	assert.Equal(t, "full_fallback", regions[0].Type)
}

func TestPDFExtractorDiscardsNonWhitelistedRegion(t *testing.T) {
	cfg := testExtractionConfig()
	cfg.WhitelistedRegions = []string{"abstract"}
	cfg.FallbackToFullText = false
	input := "Abstract\nKept text.\nDiscussion\nDropped text."

	regions, err := PDFExtractor{}.ExtractRegions(input, cfg)
	require.NoError(t, err)

	require.Len(t, regions, 1)
	assert.Equal(t, "abstract", regions[0].Type)
}

func TestForSourceRouting(t *testing.T) {
	assert.IsType(t, &PDFExtractor{}, ForSource("pdf_text", ""))
	assert.IsType(t, &TextExtractor{}, ForSource("user_text", ""))
	assert.IsType(t, &PDFExtractor{}, ForSource("", "file:/tmp/paper.pdf"))
	assert.IsType(t, &TextExtractor{}, ForSource("", "file:/tmp/notes.txt"))
}
