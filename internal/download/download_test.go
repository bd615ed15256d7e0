package download

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litreview/engine/internal/model"
)

func TestSafeTitleReplacesNonAlphanumeric(t *testing.T) {
	assert.Equal(t, "CRISPR_Cas9_gene_editing", safeTitle("CRISPR/Cas9: gene editing"))
}

func TestSafeTitleTruncatesTo30Chars(t *testing.T) {
	title := "A very long paper title that exceeds thirty characters"
	assert.Len(t, safeTitle(title), 30)
}

func TestJoinRegionTextSkipsBlankRegions(t *testing.T) {
	regions := []model.Region{
		{Text: "abstract text"},
		{Text: "   "},
		{Text: "body text"},
	}
	assert.Equal(t, "abstract text\n\nbody text", joinRegionText(regions))
}

func TestJoinRegionTextEmptyInput(t *testing.T) {
	assert.Equal(t, "", joinRegionText(nil))
}
