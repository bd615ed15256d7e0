package extractor

import (
	"os"
	"strings"

	"github.com/litreview/engine/internal/config"
)

// pageBreak is the page-separator convention used between extracted PDF
// pages, matching document_format_extractors.py's "\n---PAGE BREAK---\n"
// join of per-page text before it reaches a region scanner.
const pageBreak = "---PAGE BREAK---"

// PDFExtractor segments PDF-derived text into whitelisted named regions
// (abstract, introduction, body, methods, results, conclusion), stopping
// outright once an excluded heading (references, bibliography) appears.
// Grounded on adapters/pdf.py's PDFAdapter: line-based block scanning
// replaces PyMuPDF's column-aware block layout analysis, since no PDF
// parsing library appears anywhere in the retrieval pack (see DESIGN.md
// for why this stays on the standard library rather than a third-party
// PDF reader). Input is page text, one page per pageBreak-delimited
// section, or the path of a file whose bytes are read as that text; no
// binary PDF decoding happens here or in ingestion.ExtractStage, which
// passes the stored file path through unchanged.
type PDFExtractor struct{}

func (PDFExtractor) ExtractRegions(input string, cfg config.ExtractionConfig) ([]Region, error) {
	if _, err := os.Stat(input); err == nil {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		input = string(data)
	}

	whitelisted := toSet(cfg.WhitelistedRegions)
	excluded := cfg.ExcludedRegions

	var (
		regions       []Region
		currentRegion string
		buffer        []string
		pageNum       = 1
	)

	flush := func(atPage int) {
		if len(buffer) == 0 || currentRegion == "" {
			return
		}
		if _, ok := whitelisted[currentRegion]; !ok {
			buffer = nil
			return
		}
		text := strings.TrimSpace(strings.Join(buffer, " "))
		if text != "" {
			regions = append(regions, Region{Text: text, Type: currentRegion, Page: atPage})
		}
		buffer = nil
	}

	pages := strings.Split(input, pageBreak)
pageLoop:
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			lower := strings.ToLower(text)
			if matchesAny(lower, excluded) {
				flush(pageNum)
				break pageLoop
			}
			if detected, ok := detectRegion(text); ok && detected != currentRegion {
				flush(pageNum)
				currentRegion = detected
				continue
			}
			if currentRegion != "" {
				buffer = append(buffer, text)
			}
		}
		pageNum++
	}
	flush(pageNum)

	if len(regions) == 0 && cfg.FallbackToFullText {
		full := strings.TrimSpace(strings.ReplaceAll(input, pageBreak, "\n"))
		if full != "" {
			regions = append(regions, Region{Text: full, Type: "full_fallback", Page: 1})
		}
	}
	return regions, nil
}

// detectRegion checks a short line against the known heading whitelist,
// mirroring PDFAdapter._detect_region's 80-char heading-length cap.
func detectRegion(text string) (string, bool) {
	if len(text) > 80 {
		return "", false
	}
	lower := strings.TrimRight(strings.ToLower(strings.TrimSpace(text)), ".")
	name, ok := regionMarkers[lower]
	return name, ok
}

func matchesAny(lower string, needles []string) bool {
	head := lower
	if len(head) > 80 {
		head = head[:80]
	}
	for _, n := range needles {
		if strings.Contains(head, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, i := range items {
		out[i] = struct{}{}
	}
	return out
}
