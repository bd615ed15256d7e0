// Package ingestion implements the C4 Ingestion Pipeline's Extract,
// Ingest, and Triple-extraction sub-stages (§4.4), sitting between the
// CREATED status and TRIPLES_EXTRACTED, immediately before internal/graph
// takes over. Grounded on
// original_source/backend/app/ingestion/{service,refinery/service,
// slicing/service}.py and original_source/backend/app/triples/
// {extractor,processor}.py.
package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/extractor"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

// fileSourceType maps a stored file's type to the IngestionSource type
// used to route both extraction and refinement, mirroring the
// "pdf_text" / "user_text" vocabulary adapters/factory.py routes on.
func fileSourceType(fileType string) string {
	if strings.EqualFold(fileType, "pdf") {
		return "pdf_text"
	}
	return "user_text"
}

// ExtractStage runs the Extractor collaborator over every unextracted
// File of a job, writing one IngestionSource per file with its
// concatenated, not-yet-refined region text, and marks each file
// extracted. Returns the count of files processed. Callers (the stage
// dispatcher) advance the job to READY_TO_INGEST once this returns
// without error.
func ExtractStage(ctx context.Context, st *store.Store, jobID int64, cfg config.ExtractionConfig) (int, error) {
	files, err := st.ListUnextractedFiles(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("listing unextracted files for job %d: %w", jobID, err)
	}

	processed := 0
	for _, f := range files {
		err := st.Transactionally(ctx, func(ctx context.Context) error {
			sourceType := fileSourceType(f.Type)
			ex := extractor.ForSource(sourceType, "file:"+f.ID)
			regions, err := ex.ExtractRegions(f.StoredPath, cfg)
			if err != nil {
				return fmt.Errorf("extracting regions from file %s: %w", f.ID, err)
			}

			rawText := concatenateRegions(regions)
			if _, err := st.CreateIngestionSource(ctx, model.IngestionSource{
				JobID:      jobID,
				SourceType: sourceType,
				SourceRef:  "file:" + f.ID,
				RawText:    rawText,
				Processed:  false,
			}); err != nil {
				return fmt.Errorf("creating ingestion source for file %s: %w", f.ID, err)
			}

			return st.MarkFileExtracted(ctx, f.ID)
		})
		if err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// concatenateRegions joins whitelisted region text in reading order with
// blank-line separation, the same join adapters/pdf.py's caller performs
// before refinement sees it.
func concatenateRegions(regions []model.Region) string {
	parts := make([]string, 0, len(regions))
	for _, r := range regions {
		if strings.TrimSpace(r.Text) != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
