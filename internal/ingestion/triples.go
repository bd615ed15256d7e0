package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

// TripleExtractionPrompt is the pipe-delimited extraction prompt template,
// with "{block_text}" substituted per block. Grounded on
// triples/extractor.py's TripleExtractor, whose prompt asset is likewise
// a plain template (see RefinementPrompt's DESIGN.md note).
const TripleExtractionPrompt = `Extract factual relationships from the text below as (subject, predicate, object)
triples. Return exactly one triple per line, pipe-delimited:

subject | predicate | object

Do not include any commentary, headers, or numbering. If no relationships are present,
return nothing.

TEXT:
{block_text}`

// maxTripleFieldLen rejects obviously hallucinated or malformed field
// values, mirroring triples/extractor.py's MAX_FIELD_LEN.
const maxTripleFieldLen = 300

const extractorName = "llm"

// ExtractTriplesFromBlock invokes the LLM collaborator against one text
// block and parses its response with partial recovery: surrounding
// commentary is trimmed, and each remaining line is parsed and kept or
// dropped independently rather than failing the whole block. Grounded on
// triples/extractor.py's TripleExtractor.extract.
func ExtractTriplesFromBlock(ctx context.Context, provider llm.Provider, blockText string) ([]model.Triple, error) {
	if strings.TrimSpace(blockText) == "" {
		return nil, nil
	}

	prompt := strings.ReplaceAll(TripleExtractionPrompt, "{block_text}", blockText)
	raw, err := provider.Generate(ctx, prompt, llm.GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("triple extraction llm call: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	return parseTripleResponse(raw), nil
}

func parseTripleResponse(raw string) []model.Triple {
	lines := nonEmptyLines(raw)
	candidates := trimCommentNoise(lines)

	triples := make([]model.Triple, 0, len(candidates))
	for _, line := range candidates {
		if t, ok := parseTripleLine(line); ok {
			triples = append(triples, t)
		}
	}
	return triples
}

// isTripleLine mirrors triples/extractor.py's loose pre-filter: exactly
// two pipe characters marks a candidate triple line.
func isTripleLine(line string) bool {
	return strings.Count(line, "|") == 2
}

// trimCommentNoise keeps only the contiguous run from the first to the
// last triple-shaped line, discarding LLM commentary wrapped around it.
func trimCommentNoise(lines []string) []string {
	first, last := -1, -1
	for i, l := range lines {
		if isTripleLine(l) {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		return nil
	}
	return lines[first : last+1]
}

func parseTripleLine(line string) (model.Triple, bool) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return model.Triple{}, false
	}
	subject := strings.TrimSpace(parts[0])
	predicate := strings.TrimSpace(parts[1])
	object := strings.TrimSpace(parts[2])
	if subject == "" || predicate == "" || object == "" {
		return model.Triple{}, false
	}
	for _, v := range []string{subject, predicate, object} {
		if strings.Contains(v, "\n") || len(v) > maxTripleFieldLen {
			return model.Triple{}, false
		}
	}
	return model.Triple{Subject: subject, Predicate: predicate, Object: object, ExtractorName: extractorName}, true
}

// TripleExtractionStage runs triple extraction for every TextBlock of a
// job that hasn't been processed yet, inserting recovered triples and
// marking each block extracted regardless of outcome — a block that
// yields zero triples still counts as done (§4.4 step 3: "monotone").
// Grounded on triples/processor.py's process_job_triples.
func TripleExtractionStage(ctx context.Context, st *store.Store, jobID int64, provider llm.Provider) (blocksProcessed, triplesCreated int, err error) {
	blocks, err := st.ListUnextractedTextBlocks(ctx, jobID)
	if err != nil {
		return 0, 0, fmt.Errorf("listing unextracted text blocks for job %d: %w", jobID, err)
	}

	for _, block := range blocks {
		txErr := st.Transactionally(ctx, func(ctx context.Context) error {
			triples, extractErr := ExtractTriplesFromBlock(ctx, provider, block.BlockText)
			if extractErr != nil {
				triples = nil
			}

			if len(triples) > 0 {
				rows := make([]model.Triple, len(triples))
				for i, t := range triples {
					t.JobID = jobID
					t.BlockID = block.ID
					t.IngestionSourceID = block.IngestionSourceID
					rows[i] = t
				}
				if _, err := st.CreateTriples(ctx, rows); err != nil {
					return fmt.Errorf("creating triples for block %s: %w", block.ID, err)
				}
				triplesCreated += len(rows)
			}

			return st.MarkTextBlockExtracted(ctx, block.ID)
		})
		if txErr != nil {
			return blocksProcessed, triplesCreated, txErr
		}
		blocksProcessed++
	}
	return blocksProcessed, triplesCreated, nil
}
