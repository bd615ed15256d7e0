package graph

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

// noiseBlacklist and noisePatterns are the built-in stopword/malformed-
// fragment rules from the older rules/node_types.py. The simplified
// backend/app/graphs/rules/node_types.py replaced these with an
// admin-policy-driven removal list and dropped entity/metadata/citation
// detection entirely; this package keeps both: the built-in rules below
// always apply, and config.GraphRulesConfig's removal lists apply on top
// (see DESIGN.md).
var noiseBlacklist = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "to": {},
	"in": {}, "is": {}, "are": {}, "be": {}, "by": {}, "for": {}, "with": {},
	"as": {}, "from": {}, "on": {}, "at": {}, "this": {}, "that": {},
	"which": {}, "who": {}, "what": {}, "where": {}, "when": {}, "why": {},
	"how": {}, "": {},
}

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[^\w\s]$`),
	regexp.MustCompile(`^\.{2,}$`),
	regexp.MustCompile(`^[_\-\s]*$`),
	regexp.MustCompile(`^[0-9.\-]{1,3}$`),
}

var (
	yearPattern    = regexp.MustCompile(`^(19|20)\d{2}$`)
	doiPattern     = regexp.MustCompile(`(?i)^(doi:|10\.\d+/.*)`)
	isbnPattern    = regexp.MustCompile(`(?i)^isbn[\s-]?(10|13)?[\s-]?[\d\s-]+$`)
	issnPattern    = regexp.MustCompile(`(?i)^issn[\s-]?(\d{4})[\s-]?(\d{4})$`)
	urlPattern     = regexp.MustCompile(`^https?://|^www\.`)
	arxivPattern   = regexp.MustCompile(`(?i)^arxiv:(\d+\.\d+)$`)
	pmidPattern    = regexp.MustCompile(`(?i)^pmid:?(\d+)$`)
	numericPattern = regexp.MustCompile(`^\d+$`)
	uuidLike       = regexp.MustCompile(`^[a-f0-9-]{20,}$`)
	acronymOnly    = regexp.MustCompile(`^[A-Z][A-Z0-9]+$`)
)

var citationKeywords = []string{"citation", "reference", "cite", "ref"}

var conceptAllowList = map[string]struct{}{
	"model": {}, "method": {}, "dataset": {}, "algorithm": {}, "hypothesis": {},
	"system": {}, "generation": {}, "training": {}, "evaluation": {},
	"experiment": {}, "metric": {}, "result": {}, "approach": {}, "technique": {},
	"framework": {}, "architecture": {}, "theory": {}, "principle": {},
	"assumption": {}, "objective": {}, "outcome": {}, "parameter": {},
	"variable": {}, "process": {}, "procedure": {}, "analysis": {},
	"implementation": {}, "application": {}, "strategy": {}, "component": {},
	"module": {}, "layer": {}, "stage": {},
}

// compiledRemoval holds the admin-policy-configured removal rules,
// compiled once per sanitize run (§4.4: "classify each node by configured
// regex/exact-match removal lists").
type compiledRemoval struct {
	patterns []*regexp.Regexp
	exact    map[string]struct{}
}

func compileRemovalRules(rules config.GraphRulesConfig) compiledRemoval {
	exact := make(map[string]struct{}, len(rules.NodeRemovalExact))
	for _, w := range rules.NodeRemovalExact {
		exact[strings.ToLower(w)] = struct{}{}
	}
	patterns := make([]*regexp.Regexp, 0, len(rules.NodeRemovalPatterns))
	for _, p := range rules.NodeRemovalPatterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			patterns = append(patterns, re)
		}
	}
	return compiledRemoval{patterns: patterns, exact: exact}
}

// classifyNode assigns one of concept/entity/metadata/citation/noise,
// synthesizing the richer original_source/app/graphs/rules/node_types.py
// five-way classifier with the newer backend tree's config-driven
// removal lists, checked first so admin policy always wins.
func classifyNode(text string, removal compiledRemoval) string {
	n := strings.TrimSpace(text)
	if n == "" {
		return "noise"
	}
	lower := strings.ToLower(n)

	if _, ok := removal.exact[lower]; ok {
		return "noise"
	}
	for _, re := range removal.patterns {
		if re.MatchString(n) {
			return "noise"
		}
	}

	if _, ok := noiseBlacklist[lower]; ok {
		return "noise"
	}
	for _, re := range noisePatterns {
		if re.MatchString(n) {
			return "noise"
		}
	}

	switch {
	case yearPattern.MatchString(n),
		doiPattern.MatchString(n),
		isbnPattern.MatchString(n),
		issnPattern.MatchString(n),
		urlPattern.MatchString(n),
		arxivPattern.MatchString(n),
		pmidPattern.MatchString(n),
		uuidLike.MatchString(n):
		return "metadata"
	case numericPattern.MatchString(n) && len(n) <= 5:
		return "metadata"
	}

	if acronymOnly.MatchString(n) {
		return "entity"
	}
	if r := []rune(n); len(r) > 1 && unicode.IsUpper(r[0]) {
		return "entity"
	}

	for _, kw := range citationKeywords {
		if strings.Contains(lower, kw) {
			return "citation"
		}
	}

	if _, ok := conceptAllowList[lower]; ok {
		return "concept"
	}
	return "concept"
}

// metadataExtractor pairs a pattern with the attribute name it demotes
// a matching metadata node onto, grounded on rules/metadata.py's
// METADATA_EXTRACTORS table.
type metadataExtractor struct {
	pattern *regexp.Regexp
	attr    string
	extract func(m []string) string
}

var metadataExtractors = []metadataExtractor{
	{regexp.MustCompile(`^(19|20)\d{2}$`), "year", func(m []string) string { return m[0] }},
	{regexp.MustCompile(`(?i)^(?:doi:|10\.\d+/.*)$`), "doi", func(m []string) string {
		s := m[0]
		s = strings.TrimPrefix(s, "doi:")
		s = strings.TrimPrefix(s, "DOI:")
		return s
	}},
	{regexp.MustCompile(`(?i)^issn[\s-]?(\d{4})[\s-]?(\d{4})$`), "issn", func(m []string) string {
		return fmt.Sprintf("%s-%s", m[1], m[2])
	}},
	{regexp.MustCompile(`(?i)^(?:arxiv:)?(\d+\.\d+)$`), "arxiv_id", func(m []string) string { return m[1] }},
	{regexp.MustCompile(`(?i)^pmid:?(\d+)$`), "pmid", func(m []string) string { return m[1] }},
	{regexp.MustCompile(`^(https?://\S+)$`), "url", func(m []string) string { return m[1] }},
}

// extractMetadata returns the attribute name/value a metadata node
// demotes to, or ok=false if none of the extractors match.
func extractMetadata(text string) (attr, value string, ok bool) {
	for _, ext := range metadataExtractors {
		if m := ext.pattern.FindStringSubmatch(text); m != nil {
			return ext.attr, ext.extract(m), true
		}
	}
	return "", "", false
}

// SanitizeResult is the Phase-2.5 output: typed, attributed nodes with
// metadata demoted and noise removed.
type SanitizeResult struct {
	Graph        model.Graph
	RemovedNodes []string
}

// Sanitize classifies every structural-graph node, demotes metadata
// objects onto their subject's attributes, and drops noise nodes and
// their incident edges. Grounded on
// original_source/backend/app/graphs/sanitize.py's three-phase pipeline.
func Sanitize(g model.Graph, rules config.GraphRulesConfig) SanitizeResult {
	removal := compileRemovalRules(rules)

	types := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		types[n.Text] = classifyNode(n.Text, removal)
	}

	attrs := make(map[string]map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		attrs[n.Text] = map[string]string{}
	}

	afterDemotion := make([]model.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if types[e.Object] == "metadata" {
			if attr, val, ok := extractMetadata(e.Object); ok {
				if a, exists := attrs[e.Subject]; exists {
					a[attr] = val
				}
			}
			continue
		}
		afterDemotion = append(afterDemotion, e)
	}

	noise := make(map[string]struct{})
	for text, t := range types {
		if t == "noise" {
			noise[text] = struct{}{}
		}
	}

	finalEdges := make([]model.Edge, 0, len(afterDemotion))
	for _, e := range afterDemotion {
		if _, bad := noise[e.Subject]; bad {
			continue
		}
		if _, bad := noise[e.Object]; bad {
			continue
		}
		finalEdges = append(finalEdges, e)
	}

	outputNodes := make([]model.Node, 0, len(g.Nodes))
	removedNodes := make([]string, 0, len(noise))
	for _, n := range g.Nodes {
		t := types[n.Text]
		if t == "noise" {
			removedNodes = append(removedNodes, n.Text)
			continue
		}
		node := n
		node.Type = t
		if a := attrs[n.Text]; len(a) > 0 {
			node.Attributes = a
		}
		outputNodes = append(outputNodes, node)
	}

	return SanitizeResult{
		Graph:        model.Graph{Nodes: outputNodes, Edges: finalEdges},
		RemovedNodes: removedNodes,
	}
}
