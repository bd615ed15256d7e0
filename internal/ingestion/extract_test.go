package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litreview/engine/internal/model"
)

func TestFileSourceTypeRoutesPDF(t *testing.T) {
	assert.Equal(t, "pdf_text", fileSourceType("pdf"))
	assert.Equal(t, "pdf_text", fileSourceType("PDF"))
	assert.Equal(t, "user_text", fileSourceType("txt"))
	assert.Equal(t, "user_text", fileSourceType(""))
}

func TestConcatenateRegionsJoinsNonEmptyInOrder(t *testing.T) {
	regions := []model.Region{
		{Text: "Abstract text.", Type: "abstract", Page: 1},
		{Text: "   ", Type: "body", Page: 1},
		{Text: "Introduction text.", Type: "introduction", Page: 2},
	}

	got := concatenateRegions(regions)

	assert.Equal(t, "Abstract text.\n\nIntroduction text.", got)
}

func TestConcatenateRegionsEmpty(t *testing.T) {
	assert.Equal(t, "", concatenateRegions(nil))
}
