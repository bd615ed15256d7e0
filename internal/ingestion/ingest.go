package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/extractor"
	"github.com/litreview/engine/internal/llm"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

// RefinementPrompt is the cleaning prompt template sent to the LLM
// collaborator, with "{text}" substituted per span. Grounded on
// refinery/service.py loading its prompt asset via load_prompt; this
// repo has no prompt-asset loader, so the template lives alongside the
// code it configures (see DESIGN.md).
const RefinementPrompt = `You are cleaning raw extracted text from a scientific document for downstream analysis.
Remove page headers, footers, figure/table captions, and OCR artifacts. Preserve the
scientific content and sentence boundaries exactly. Return only the cleaned text, with
no commentary.

TEXT:
{text}`

// IngestStage processes every unprocessed IngestionSource of a job:
// extraction fallback for file-backed sources whose Extract sub-stage
// hasn't already populated raw text, conditional LLM refinement,
// canonical raw_text persistence, sentence-aware slicing into
// TextBlocks, and marking the source processed. Each source commits
// independently for idempotent retry (§4.4 step 5). Grounded on
// ingestion/service.py's IngestionService.ingest_job loop.
func IngestStage(ctx context.Context, st *store.Store, jobID int64, provider llm.Provider, extractionCfg config.ExtractionConfig, refinementCfg config.RefinementConfig, slicingCfg config.SlicingConfig) (sourcesProcessed, blocksCreated int, err error) {
	sources, err := st.ListUnprocessedIngestionSources(ctx, jobID)
	if err != nil {
		return 0, 0, fmt.Errorf("listing unprocessed ingestion sources for job %d: %w", jobID, err)
	}

	for _, src := range sources {
		var created int
		txErr := st.Transactionally(ctx, func(ctx context.Context) error {
			raw, err := resolveRawText(ctx, st, *src, extractionCfg)
			if err != nil {
				return fmt.Errorf("resolving raw text for source %s: %w", src.ID, err)
			}

			cleaned := raw
			if needsRefinement(src.SourceType, refinementCfg) {
				cleaned, err = RefineText(ctx, provider, RefinementPrompt, raw, refinementCfg)
				if err != nil {
					return fmt.Errorf("refining source %s: %w", src.ID, err)
				}
			}

			if err := st.UpdateIngestionSourceRawText(ctx, src.ID, cleaned); err != nil {
				return err
			}

			blocks := SliceText(cleaned, slicingCfg)
			rows := make([]model.TextBlock, len(blocks))
			for i, b := range blocks {
				rows[i] = model.TextBlock{
					JobID:                jobID,
					IngestionSourceID:    src.ID,
					BlockText:            b,
					BlockOrder:           i + 1,
					SegmentationStrategy: slicingCfg.Strategy,
					TriplesExtracted:     false,
				}
			}
			if len(rows) > 0 {
				if _, err := st.CreateTextBlocks(ctx, rows); err != nil {
					return fmt.Errorf("creating text blocks for source %s: %w", src.ID, err)
				}
			}
			created = len(rows)

			return st.MarkIngestionSourceProcessed(ctx, src.ID)
		})
		if txErr != nil {
			return sourcesProcessed, blocksCreated, txErr
		}
		sourcesProcessed++
		blocksCreated += created
	}
	return sourcesProcessed, blocksCreated, nil
}

// resolveRawText returns the source's already-populated raw text, or, if
// a file-backed source somehow reached Ingest without Extract having run
// (e.g. a source created directly rather than through ExtractStage),
// looks up the backing file's stored path and runs the extractor adapter
// now — matching §4.4 step 1's "run the extractor adapter ... if
// file-backed; else use its raw text as-is".
func resolveRawText(ctx context.Context, st *store.Store, src model.IngestionSource, cfg config.ExtractionConfig) (string, error) {
	if strings.TrimSpace(src.RawText) != "" {
		return src.RawText, nil
	}
	if !strings.Contains(src.SourceRef, "file:") {
		return src.RawText, nil
	}
	fileID := strings.TrimPrefix(src.SourceRef, "file:")
	file, err := st.GetFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("looking up backing file %s for source %s: %w", fileID, src.ID, err)
	}
	ex := extractor.ForSource(src.SourceType, src.SourceRef)
	regions, err := ex.ExtractRegions(file.StoredPath, cfg)
	if err != nil {
		return "", err
	}
	return concatenateRegions(regions), nil
}
