// Package download implements the Strategic Paper Downloader: the
// DOWNLOAD_QUEUED stage that streams full-text PDFs for the job's
// highest-impact unevaluated papers, registers each as a File and a
// pdf_text IngestionSource, and flips the ledger's evaluated flag so a
// paper is never downloaded twice. Grounded on
// original_source/backend/app/fetching/downloader.py's PaperDownloader,
// re-expressed with the plain net/http.Client idiom internal/paperprovider
// already uses (arxiv.go, semanticscholar.go) rather than porting httpx.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/extractor"
	"github.com/litreview/engine/internal/model"
	"github.com/litreview/engine/internal/store"
)

// safeFilenamePattern mirrors downloader.py's "c if c.isalnum() else '_'"
// title sanitization.
var safeFilenamePattern = regexp.MustCompile(`[^A-Za-z0-9]`)

func safeTitle(title string) string {
	if len(title) > 30 {
		title = title[:30]
	}
	return safeFilenamePattern.ReplaceAllString(title, "_")
}

// Downloader streams PDFs with a bounded retry loop and registers them
// for ingestion.
type Downloader struct {
	client *http.Client
	cfg    config.DownloadConfig
}

func New(cfg config.DownloadConfig) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		cfg:    cfg,
	}
}

// ProcessJobDownloads downloads every unevaluated JobPaperEvidence row of
// a job, highest impact_score first, registering a File and
// IngestionSource for each successful download. A paper with no pdf_url,
// or whose download ultimately fails, is still marked evaluated so the
// ledger never retries it forever — matching downloader.py's
// "mark as processed even if skipped" comment. Returns the count of
// papers newly registered for ingestion.
func (d *Downloader) ProcessJobDownloads(ctx context.Context, st *store.Store, jobID int64) (int, error) {
	evidence, err := st.ListJobPaperEvidence(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("listing job paper evidence for job %d: %w", jobID, err)
	}
	var pending []*model.JobPaperEvidence
	for _, e := range evidence {
		if !e.Evaluated {
			pending = append(pending, e)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].ImpactScore > pending[j].ImpactScore })

	downloaded := 0
	for _, e := range pending {
		ok, err := d.downloadAndRegister(ctx, st, jobID, e)
		if err != nil {
			return downloaded, err
		}
		if ok {
			downloaded++
		}
		if err := st.MarkJobPaperEvidenceEvaluated(ctx, e.ID); err != nil {
			return downloaded, fmt.Errorf("marking evidence %s evaluated: %w", e.ID, err)
		}
	}
	return downloaded, nil
}

func (d *Downloader) downloadAndRegister(ctx context.Context, st *store.Store, jobID int64, e *model.JobPaperEvidence) (bool, error) {
	paper, err := st.FindPaperByID(ctx, e.PaperID)
	if err != nil {
		return false, nil
	}
	if paper.PDFURL == nil || strings.TrimSpace(*paper.PDFURL) == "" {
		return false, nil
	}

	jobDir := filepath.Join(d.cfg.BaseDir, fmt.Sprint(jobID), "original")
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return false, fmt.Errorf("creating download directory %s: %w", jobDir, err)
	}
	filename := fmt.Sprintf("%d_%s_%s.pdf", int(e.ImpactScore), paper.ID, safeTitle(paper.Title))
	targetPath := filepath.Join(jobDir, filename)

	if !d.streamDownload(ctx, *paper.PDFURL, targetPath) {
		return false, nil
	}

	rawText := ""
	if regions, err := extractor.ForSource("pdf_text", "file:"+targetPath).ExtractRegions(targetPath, config.ExtractionConfig{FallbackToFullText: true}); err == nil {
		rawText = joinRegionText(regions)
	}

	file, err := st.CreateFile(ctx, model.File{
		JobID:            jobID,
		PaperID:          &paper.ID,
		Origin:           "paper_download",
		StoredPath:       targetPath,
		Type:             "pdf",
		OriginalFilename: filename,
	})
	if err != nil {
		return false, fmt.Errorf("registering downloaded file for paper %s: %w", paper.ID, err)
	}

	if _, err := st.CreateIngestionSource(ctx, model.IngestionSource{
		JobID:      jobID,
		SourceType: "pdf_text",
		SourceRef:  "file:" + file.ID,
		RawText:    rawText,
		Processed:  false,
	}); err != nil {
		return false, fmt.Errorf("registering ingestion source for downloaded file %s: %w", file.ID, err)
	}
	return true, nil
}

func joinRegionText(regions []model.Region) string {
	var parts []string
	for _, r := range regions {
		if strings.TrimSpace(r.Text) != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// streamDownload retries up to MaxRetries times, matching downloader.py's
// _stream_download backoff loop.
func (d *Downloader) streamDownload(ctx context.Context, url, targetPath string) bool {
	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		if d.attemptDownload(ctx, url, targetPath) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(2 * time.Second):
		}
	}
	return false
}

func (d *Downloader) attemptDownload(ctx context.Context, url, targetPath string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	out, err := os.Create(targetPath)
	if err != nil {
		return false
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err == nil
}
