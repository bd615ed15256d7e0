package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litreview/engine/internal/config"
)

func testSlicingConfig() config.SlicingConfig {
	return config.SlicingConfig{Strategy: "sentences", SentencesPerBlock: 2, MaxTokensPerBlock: 300}
}

func TestSliceTextGroupsBySentenceCount(t *testing.T) {
	text := "First sentence. Second sentence. Third sentence. Fourth sentence."

	blocks := SliceText(text, testSlicingConfig())

	assert.Equal(t, []string{
		"First sentence. Second sentence.",
		"Third sentence. Fourth sentence.",
	}, blocks)
}

func TestSliceTextNeverEndsMidSentence(t *testing.T) {
	text := "One. Two. Three."

	blocks := SliceText(text, testSlicingConfig())

	for _, b := range blocks {
		last := b[len(b)-1]
		assert.Contains(t, []byte{'.', '?', '!'}, last)
	}
}

func TestSliceTextRespectsTokenBudget(t *testing.T) {
	long := strings.Repeat("word ", 200) + "."
	cfg := config.SlicingConfig{Strategy: "sentences", SentencesPerBlock: 10, MaxTokensPerBlock: 10}

	blocks := SliceText(long+" "+long, cfg)

	assert.GreaterOrEqual(t, len(blocks), 2)
}

func TestSliceTextEmptyInput(t *testing.T) {
	assert.Nil(t, SliceText("   ", testSlicingConfig()))
}
