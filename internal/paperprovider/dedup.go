package paperprovider

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// normalizeText lowercases, strips non-alphanumeric/non-space runes, and
// collapses whitespace, matching deduplication/fingerprinting.py's
// normalize_text exactly so fingerprints computed here would agree with
// ones computed by the original backend over the same paper.
func normalizeText(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isAlnumOrSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isAlnumOrSpace(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	default:
		// Treat any other letter (accents, non-Latin scripts) as
		// alphanumeric too, since Python's str.isalnum() is Unicode-aware.
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}
}

// Fingerprint computes a content-based dedup fingerprint from a paper's
// normalized title, first author, and year — the components §4.9b calls
// out ("normalized title+first-author+year hash"), combined and hashed
// the way compute_fingerprint joins its configured components with " | "
// and hashes with SHA-256.
func Fingerprint(title string, firstAuthor string, year int) string {
	parts := []string{normalizeText(title)}
	if firstAuthor != "" {
		parts = append(parts, normalizeText(firstAuthor))
	}
	if year != 0 {
		parts = append(parts, strconv.Itoa(year))
	}
	combined := strings.Join(parts, " | ")
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// FingerprintOf derives a Fingerprint directly from a FetchedPaper,
// taking the first author as the "first-author" component.
func FingerprintOf(p FetchedPaper) string {
	var firstAuthor string
	if len(p.Authors) > 0 {
		firstAuthor = p.Authors[0]
	}
	return Fingerprint(p.Title, firstAuthor, p.Year)
}
