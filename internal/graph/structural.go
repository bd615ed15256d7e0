// Package graph implements the Graph Build sub-stage of the Ingestion
// Pipeline (C4): structural projection of raw triples into a deduplicated
// graph, sanitization (node classification and noise removal), and
// embedding-based semantic merging. Grounded on
// original_source/app/graphs/{structural,normalizer,aggregator}.py for
// structural projection, original_source/backend/app/graphs/{sanitize,
// rules/node_types}.py for sanitization, and
// original_source/backend/app/graphs/semantic.py for semantic merging —
// the retrieval pack carries two generations of this pipeline under
// original_source/app/graphs and original_source/backend/app/graphs; see
// DESIGN.md for how this package reconciles them.
package graph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/litreview/engine/internal/model"
)

// predicateMap is the closed verb-substring-to-relation mapping from
// rules/predicates.py, applied longest-key-first so "utilize" is not
// shadowed by a shorter unrelated key.
var predicateMap = map[string]string{
	"use":        "used_for",
	"utilize":    "used_for",
	"apply":      "used_for",
	"evaluate":   "evaluated_by",
	"measure":    "measured_by",
	"show":       "demonstrates",
	"demonstrate": "demonstrates",
	"lead":       "causes",
	"cause":      "causes",
	"result":     "results_in",
	"improve":    "improves",
	"increase":   "increases",
	"decrease":   "decreases",
	"compare":    "compares",
	"propose":    "proposes",
	"introduce":  "introduces",
	"develop":    "develops",
	"train":      "training",
	"generate":   "generates",
	"produce":    "produces",
	"suggest":    "suggests",
	"find":       "finds",
	"observe":    "observes",
	"relate":     "related_to",
	"associate":  "related_to",
	"contain":    "contains",
	"include":    "includes",
}

var predicateKeysByLength = func() []string {
	keys := make([]string, 0, len(predicateMap))
	for k := range predicateMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// objectAllowList is rules/objects.py's OBJECT_ALLOW_LIST: structural
// concept tokens an object phrase's head noun is normalized to verbatim
// when it matches, instead of keeping the full noun phrase.
var objectAllowList = map[string]struct{}{
	"model": {}, "method": {}, "dataset": {}, "algorithm": {},
	"hypothesis": {}, "system": {}, "generation": {}, "training": {},
	"evaluation": {}, "experiment": {}, "metric": {}, "result": {},
}

var (
	acronymPattern  = regexp.MustCompile(`\(([A-Z0-9]{2,})s?\)`)
	leadingFillers  = regexp.MustCompile(`(?i)^(ensuring that|ensuring|ensures that|that|to )\b`)
	ratherThan      = regexp.MustCompile(`(?i)rather than.*$`)
	ofPrefix        = regexp.MustCompile(`(?i)^of\s+`)
	trailingPunct   = regexp.MustCompile(`[.,;:)]+$`)
	articlesPattern = regexp.MustCompile(`(?i)\b(the|a|an)\b`)
)

func extractAcronym(text string) string {
	m := acronymPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// headWord approximates spaCy's noun-chunk-head-lemma extraction with a
// deterministic heuristic: English noun phrases are head-final, so the
// last content word of a cleaned phrase stands in for the dependency
// head. No NER model exists in this module's dependency surface, so the
// NER-span tier of the original chain collapses into this one heuristic
// step.
func headWord(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	return singularize(strings.ToLower(words[len(words)-1]))
}

// singularize strips a trailing "s" plural, leaving words already ending
// in a double "s" (e.g. "analysis", "process") untouched.
func singularize(w string) string {
	if strings.HasSuffix(w, "ss") || !strings.HasSuffix(w, "s") {
		return w
	}
	return strings.TrimSuffix(w, "s")
}

// projectSubject reduces subject text to a stable handle: parenthetical
// acronym, else head-word of the cleaned phrase, else the cleaned phrase
// itself. Grounded on structural.py's project_subject.
func projectSubject(text string) string {
	if text == "" {
		return ""
	}
	if acr := extractAcronym(text); acr != "" {
		return acr
	}
	cleaned := strings.TrimSpace(articlesPattern.ReplaceAllString(text, ""))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if h := headWord(cleaned); h != "" {
		return h
	}
	return strings.ToLower(cleaned)
}

// projectPredicate maps predicate text to the closed relation set via
// longest-substring match, defaulting to "related_to". Grounded on
// structural.py's project_predicate (minus the spaCy verb-lemma
// secondary tier, which has no substitute in this module's stack).
func projectPredicate(text string) string {
	if text == "" {
		return "related_to"
	}
	lower := strings.ToLower(text)
	for _, key := range predicateKeysByLength {
		if strings.Contains(lower, key) {
			return predicateMap[key]
		}
	}
	return "related_to"
}

func cleanObjectPhrase(phrase string) string {
	phrase = leadingFillers.ReplaceAllString(phrase, "")
	phrase = ratherThan.ReplaceAllString(phrase, "")
	phrase = strings.Join(strings.Fields(phrase), " ")
	phrase = trailingPunct.ReplaceAllString(strings.TrimSpace(phrase), "")
	return strings.TrimSpace(phrase)
}

// projectObject reduces object text to a short concept phrase: clean
// filler clauses, then prefer the allow-listed head word, else the
// cleaned phrase with a leading "of " stripped. Grounded on
// structural.py's project_object.
func projectObject(text string) string {
	if text == "" {
		return ""
	}
	clean := cleanObjectPhrase(text)
	if clean == "" {
		return ""
	}
	head := headWord(clean)
	if _, ok := objectAllowList[head]; ok {
		return head
	}
	return strings.ToLower(ofPrefix.ReplaceAllString(clean, ""))
}

// tripleKey is the normalized (subject, predicate, object) grouping key.
type tripleKey struct {
	subject, predicate, object string
}

type projectedGroup struct {
	support   int
	tripleIDs map[string]struct{}
	blockIDs  map[string]struct{}
	sourceIDs map[string]struct{}
}

// BuildStructural reduces raw extracted triples to a deduplicated
// projected graph: each triple's subject/predicate/object is reduced to a
// stable handle, grouped by the normalized triple, with support summed
// and provenance id sets carried per group. Grounded on structural.py's
// project_structural_graph / aggregator.py's evidence-grouping shape.
func BuildStructural(triples []*model.Triple) model.Graph {
	groups := make(map[tripleKey]*projectedGroup)
	var order []tripleKey

	for _, t := range triples {
		if t == nil {
			continue
		}
		key := tripleKey{
			subject:   projectSubject(t.Subject),
			predicate: projectPredicate(t.Predicate),
			object:    projectObject(t.Object),
		}
		if key.subject == "" || key.object == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &projectedGroup{
				tripleIDs: make(map[string]struct{}),
				blockIDs:  make(map[string]struct{}),
				sourceIDs: make(map[string]struct{}),
			}
			groups[key] = g
			order = append(order, key)
		}
		if _, seen := g.tripleIDs[t.ID]; !seen {
			g.tripleIDs[t.ID] = struct{}{}
			g.support++
		}
		if t.BlockID != "" {
			g.blockIDs[t.BlockID] = struct{}{}
		}
		if t.IngestionSourceID != "" {
			g.sourceIDs[t.IngestionSourceID] = struct{}{}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.subject != b.subject {
			return a.subject < b.subject
		}
		if a.predicate != b.predicate {
			return a.predicate < b.predicate
		}
		return a.object < b.object
	})

	nodeSet := make(map[string]struct{})
	edges := make([]model.Edge, 0, len(order))
	for _, key := range order {
		g := groups[key]
		nodeSet[key.subject] = struct{}{}
		nodeSet[key.object] = struct{}{}
		edges = append(edges, model.Edge{
			Subject:   key.subject,
			Predicate: key.predicate,
			Object:    key.object,
			Support:   g.support,
			TripleIDs: sortedKeys(g.tripleIDs),
			BlockIDs:  sortedKeys(g.blockIDs),
			SourceIDs: sortedKeys(g.sourceIDs),
		})
	}

	nodeTexts := sortedKeys(nodeSet)
	nodes := make([]model.Node, 0, len(nodeTexts))
	for _, text := range nodeTexts {
		nodes = append(nodes, model.Node{Text: text})
	}

	return model.Graph{Nodes: nodes, Edges: edges}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
