package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/llm"
)

// garbageMarkers are meta-commentary prefixes the LLM sometimes prepends
// to a cleaning response ("Here is your cleaned text:") despite the
// prompt asking for text only; stripped so they never poison downstream
// triple extraction. Grounded on refinery/service.py's
// "Meta-filler Scrubbing" step.
var garbageMarkers = []string{"here is", "clean text:", "cleaned text:", "the following", "refinement:"}

// charsPerToken approximates the ratio refinery/service.py uses to turn a
// token budget into a character budget for span splitting.
const charsPerToken = 3.0

// needsRefinement reports whether a source type is sent through the LLM
// cleaning prompt at all (§4.4: "refinement list").
func needsRefinement(sourceType string, cfg config.RefinementConfig) bool {
	for _, t := range cfg.NeedsRefinementTypes {
		if strings.EqualFold(t, sourceType) {
			return true
		}
	}
	return false
}

// RefineText cleans raw extraction text via the LLM collaborator,
// chunking large inputs into spans bounded by cfg.MaxTokensPerSpan and
// retrying a span up to cfg.MaxRetries times when the response looks
// truncated mid-sentence. Grounded on refinery/service.py's
// TextRefineryService.refine_text / _split_into_spans / _refine_span.
func RefineText(ctx context.Context, provider llm.Provider, promptTemplate string, rawText string, cfg config.RefinementConfig) (string, error) {
	if strings.TrimSpace(rawText) == "" {
		return "", nil
	}

	maxChars := int(float64(cfg.MaxTokensPerSpan) * charsPerToken)
	spans := splitIntoSpans(rawText, maxChars)

	refined := make([]string, 0, len(spans))
	for _, span := range spans {
		clean, err := refineSpan(ctx, provider, promptTemplate, span, cfg)
		if err != nil {
			return "", err
		}
		if clean != "" {
			refined = append(refined, clean)
		}
	}
	return strings.Join(refined, "\n"), nil
}

// splitIntoSpans breaks text into chunks no larger than maxChars,
// preferring paragraph, then line, then word boundaries before falling
// back to a hard cut.
func splitIntoSpans(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var spans []string
	remaining := text
	for len(remaining) > maxChars {
		window := remaining[:maxChars]
		splitIdx := strings.LastIndex(window, "\n\n")
		if splitIdx == -1 {
			splitIdx = strings.LastIndex(window, "\n")
		}
		if splitIdx == -1 {
			splitIdx = strings.LastIndex(window, " ")
		}
		if splitIdx == -1 {
			splitIdx = maxChars
		}
		spans = append(spans, strings.TrimSpace(remaining[:splitIdx]))
		remaining = strings.TrimSpace(remaining[splitIdx:])
	}
	if remaining != "" {
		spans = append(spans, remaining)
	}
	return spans
}

// refineSpan sends one manageable span through the cleaning prompt,
// retrying when the span is long and its last line lacks terminal
// punctuation — a loose truncation heuristic, not a hard guarantee.
func refineSpan(ctx context.Context, provider llm.Provider, promptTemplate string, span string, cfg config.RefinementConfig) (string, error) {
	prompt := strings.ReplaceAll(promptTemplate, "{text}", span)
	temp := cfg.Temperature
	maxTokens := cfg.MaxTokensPerSpan

	var lastErr error
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := provider.Generate(ctx, prompt, llm.GenerateOptions{Temperature: &temp, MaxTokens: &maxTokens})
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(resp) == "" {
			return "", nil
		}

		lines := nonEmptyLines(resp)
		if len(span) > 200 && len(lines) > 0 && !endsWithTerminalPunctuation(lines[len(lines)-1]) {
			lastErr = fmt.Errorf("refine span: response looks truncated")
			continue
		}

		return scrubGarbageMarkers(strings.Join(lines, "\n")), nil
	}
	return "", fmt.Errorf("refining span after %d attempts: %w", attempts, lastErr)
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func endsWithTerminalPunctuation(line string) bool {
	for _, p := range []string{".", "?", "!", "\""} {
		if strings.HasSuffix(line, p) {
			return true
		}
	}
	return false
}

func scrubGarbageMarkers(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range garbageMarkers {
		if strings.HasPrefix(lower, marker) {
			if idx := strings.Index(text, "\n"); idx != -1 {
				return strings.TrimSpace(text[idx+1:])
			}
			return ""
		}
	}
	return text
}
