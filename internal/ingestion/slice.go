package ingestion

import (
	"regexp"
	"strings"

	"github.com/litreview/engine/internal/config"
)

// sentenceBoundary locates terminal punctuation followed by whitespace,
// the same recovery-oriented regex slicing/service.py uses rather than a
// full sentence tokenizer — no such library appears in the retrieval
// pack (see DESIGN.md). Go's RE2 has no lookbehind, so the boundary is
// matched (not split on directly) and the punctuation is reattached to
// the preceding sentence in splitSentences below.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// charsPerTokenSlicing mirrors slicing/service.py's own (slightly looser)
// token-to-character ratio, kept distinct from refine.go's since the
// Python originals use different constants for the two concerns.
const charsPerTokenSlicing = 3.5

// SliceText splits refined text into TextBlock-sized chunks: grouped by
// sentence count and a token-estimate character budget, never splitting
// a sentence across two blocks. Grounded on
// ingestion/slicing/service.py's SentenceSlicingService.slice_text.
func SliceText(text string, cfg config.SlicingConfig) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	sentences := splitSentences(trimmed)
	if len(sentences) == 0 {
		return []string{trimmed}
	}

	maxTokens := float64(cfg.MaxTokensPerBlock)

	var blocks []string
	var current []string
	currentTokenEst := 0.0

	for _, sentence := range sentences {
		sentenceTokenEst := float64(len(sentence)) / charsPerTokenSlicing
		if len(current) > 0 && (len(current) >= cfg.SentencesPerBlock || currentTokenEst+sentenceTokenEst > maxTokens) {
			blocks = append(blocks, strings.Join(current, " "))
			current = nil
			currentTokenEst = 0
		}
		current = append(current, sentence)
		currentTokenEst += sentenceTokenEst
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, " "))
	}
	return blocks
}

// splitSentences cuts text at each sentenceBoundary match, keeping the
// matched terminal punctuation attached to the sentence it ends.
func splitSentences(text string) []string {
	matches := sentenceBoundary.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(matches)+1)

	start := 0
	for _, m := range matches {
		punctEnd := m[0] + 1 // keep the punctuation, drop the trailing whitespace run
		if s := strings.TrimSpace(text[start:punctEnd]); s != "" {
			out = append(out, s)
		}
		start = m[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
