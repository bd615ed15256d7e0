// Package pathreasoning implements the Path Reasoner & Filter (C5):
// deterministic path enumeration over the active SemanticGraph (explore or
// query mode), hypothesis construction with weakest-link confidence, and
// a strict-order, short-circuiting post-generation filter. Grounded on
// original_source/backend/app/path_reasoning/{reasoning,filtering/logic}.py.
package pathreasoning

import (
	"sort"
	"strings"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

var metadataNodeTypes = map[string]struct{}{
	"metadata": {},
	"citation": {},
}

// hop is the aggregated view of every raw edge between the same ordered
// (subject, object) pair: its predicates and each predicate's support,
// mirroring reasoning.py's networkx DiGraph edge-attribute aggregation.
type hop struct {
	predicates []string
	supports   []int
	tripleIDs  []string
	sourceIDs  []string
	blockIDs   []string
}

func (h hop) maxSupport() int {
	max := 0
	for _, s := range h.supports {
		if s > max {
			max = s
		}
	}
	return max
}

// directedGraph is the adjacency view path reasoning operates over.
type directedGraph struct {
	nodes       map[string]model.Node
	successors  map[string][]string
	predecessors map[string][]string
	edges       map[[2]string]*hop
	degree      map[string]int
}

func buildDirectedGraph(g *model.Graph) *directedGraph {
	dg := &directedGraph{
		nodes:        make(map[string]model.Node, len(g.Nodes)),
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
		edges:        make(map[[2]string]*hop),
		degree:       make(map[string]int),
	}
	for _, n := range g.Nodes {
		dg.nodes[n.Text] = n
	}
	for _, e := range g.Edges {
		key := [2]string{e.Subject, e.Object}
		h, ok := dg.edges[key]
		if !ok {
			h = &hop{}
			dg.edges[key] = h
			dg.successors[e.Subject] = append(dg.successors[e.Subject], e.Object)
			dg.predecessors[e.Object] = append(dg.predecessors[e.Object], e.Subject)
		}
		h.predicates = append(h.predicates, e.Predicate)
		h.supports = append(h.supports, e.Support)
		h.tripleIDs = mergeIDs(h.tripleIDs, e.TripleIDs)
		h.sourceIDs = mergeIDs(h.sourceIDs, e.SourceIDs)
		h.blockIDs = mergeIDs(h.blockIDs, e.BlockIDs)
		dg.degree[e.Subject]++
		dg.degree[e.Object]++
	}
	return dg
}

// mergeIDs appends b's elements not already present in a, preserving
// first-seen order — same shape as graph.mergeUnique, kept local here to
// avoid a cross-package dependency for one helper.
func mergeIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			a = append(a, id)
		}
	}
	return a
}

func (dg *directedGraph) hasEdge(a, b string) bool {
	_, ok := dg.edges[[2]string{a, b}]
	return ok
}

// aliasToCanonical maps every alias text (and every canonical text to
// itself) for seed resolution in query mode.
func aliasToCanonical(g *model.Graph) map[string]string {
	m := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		m[n.Text] = n.Text
		for _, a := range n.Aliases {
			m[a] = n.Text
		}
	}
	return m
}

// Options configures one path-reasoning run (§4.5/§6's per-job
// path_reasoning block).
type Options struct {
	Mode      string // explore | query
	Seeds     []string
	Stoplist  []string
	AllowLen3 bool
	MaxHops   int
}

func explorePaths(dg *directedGraph, maxHops int, allowLen3 bool) [][]string {
	var paths [][]string
	for mid := range dg.nodes {
		for _, a := range dg.predecessors[mid] {
			for _, c := range dg.successors[mid] {
				if a == c {
					continue
				}
				paths = append(paths, []string{a, mid, c})
			}
		}
	}
	if allowLen3 && maxHops >= 3 {
		for b := range dg.nodes {
			for _, c := range dg.successors[b] {
				for _, d := range dg.successors[c] {
					for _, a := range dg.predecessors[b] {
						if distinctCount(a, b, c, d) < 4 {
							continue
						}
						paths = append(paths, []string{a, b, c, d})
					}
				}
			}
		}
	}
	return paths
}

func distinctCount(nodes ...string) int {
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		seen[n] = struct{}{}
	}
	return len(seen)
}

func queryPaths(dg *directedGraph, seeds []string, aliasMap map[string]string, maxHops int, allowLen3 bool) [][]string {
	if len(seeds) == 0 {
		return nil
	}
	canonical := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		if c, ok := aliasMap[s]; ok {
			canonical[c] = struct{}{}
		} else {
			canonical[s] = struct{}{}
		}
	}
	var out [][]string
	for _, path := range explorePaths(dg, maxHops, allowLen3) {
		start, end := path[0], path[len(path)-1]
		if _, ok := canonical[start]; ok {
			out = append(out, path)
			continue
		}
		if _, ok := canonical[end]; ok {
			out = append(out, path)
		}
	}
	return out
}

func pathHasBadNode(dg *directedGraph, path []string, stoplist map[string]struct{}) bool {
	if distinctCount(path...) != len(path) {
		return true
	}
	for _, n := range path {
		if node, ok := dg.nodes[n]; ok {
			if _, bad := metadataNodeTypes[node.Type]; bad {
				return true
			}
		}
	}
	for _, n := range path[1 : len(path)-1] {
		if _, bad := stoplist[strings.ToLower(n)]; bad {
			return true
		}
	}
	return false
}

func predicatesAlongPath(dg *directedGraph, path []string) [][]string {
	out := make([][]string, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		key := [2]string{path[i], path[i+1]}
		if h, ok := dg.edges[key]; ok {
			out = append(out, append([]string(nil), h.predicates...))
		} else {
			out = append(out, nil)
		}
	}
	return out
}

func buildHypothesis(dg *directedGraph, path []string, mode string) model.Hypothesis {
	hopStrengths := make([]int, len(path)-1)
	var tripleIDs, sourceIDs, blockIDs []string
	for i := 0; i < len(path)-1; i++ {
		key := [2]string{path[i], path[i+1]}
		if h, ok := dg.edges[key]; ok {
			hopStrengths[i] = h.maxSupport()
			tripleIDs = mergeIDs(tripleIDs, h.tripleIDs)
			sourceIDs = mergeIDs(sourceIDs, h.sourceIDs)
			blockIDs = mergeIDs(blockIDs, h.blockIDs)
		}
	}
	confidence := 0
	if len(hopStrengths) > 0 {
		confidence = hopStrengths[0]
		for _, s := range hopStrengths[1:] {
			if s < confidence {
				confidence = s
			}
		}
	}

	predsPerHop := predicatesAlongPath(dg, path)
	var flat []string
	for _, hop := range predsPerHop {
		flat = append(flat, hop...)
	}

	var parts []string
	for i := 0; i < len(path)-1; i++ {
		u, v := path[i], path[i+1]
		preds := predsPerHop[i]
		if len(preds) > 0 {
			parts = append(parts, u+" -["+strings.Join(preds, ", ")+"]-> "+v)
		} else {
			parts = append(parts, u+" -> "+v)
		}
	}

	return model.Hypothesis{
		Source:      path[0],
		Target:      path[len(path)-1],
		Path:        append([]string(nil), path...),
		Predicates:  flat,
		Explanation: strings.Join(parts, " then "),
		Confidence:  confidence,
		Mode:        mode,
		TripleIDs:   tripleIDs,
		SourceIDs:   sourceIDs,
		BlockIDs:    blockIDs,
	}
}

// Run enumerates candidate paths, discards structurally invalid ones
// (cycle, metadata/citation node, stoplisted intermediate, or a direct
// edge already connecting source and target — the "novelty" generation
// rule), builds a hypothesis per surviving unique (source, target, path),
// and returns them sorted by confidence desc, then source, then target.
func Run(graph *model.Graph, opts Options) []model.Hypothesis {
	dg := buildDirectedGraph(graph)
	maxHops := opts.MaxHops
	if maxHops == 0 {
		maxHops = 2
	}

	stoplist := make(map[string]struct{}, len(opts.Stoplist))
	for _, s := range opts.Stoplist {
		stoplist[strings.ToLower(s)] = struct{}{}
	}

	var candidates [][]string
	if opts.Mode == "query" {
		candidates = queryPaths(dg, opts.Seeds, aliasToCanonical(graph), maxHops, opts.AllowLen3)
	} else {
		candidates = explorePaths(dg, maxHops, opts.AllowLen3)
	}

	seen := make(map[string]struct{})
	var hyps []model.Hypothesis
	for _, path := range candidates {
		if pathHasBadNode(dg, path, stoplist) {
			continue
		}
		if dg.hasEdge(path[0], path[len(path)-1]) {
			continue
		}
		key := strings.Join(path, "→")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		hyps = append(hyps, buildHypothesis(dg, path, opts.Mode))
	}

	sort.Slice(hyps, func(i, j int) bool {
		if hyps[i].Confidence != hyps[j].Confidence {
			return hyps[i].Confidence > hyps[j].Confidence
		}
		if hyps[i].Source != hyps[j].Source {
			return hyps[i].Source < hyps[j].Source
		}
		return hyps[i].Target < hyps[j].Target
	})
	return hyps
}

// FilterContext carries the tunables the ordered rejection rules read.
type FilterContext struct {
	Degrees           map[string]int
	HubDegreeThreshold int
	MinConfidence      int
	GenericPredicates  map[string]struct{}
	HasDirectEdge      func(source, target string) bool
}

// NewFilterContext derives degrees and a direct-edge lookup from the
// graph, applying the admin policy's thresholds.
func NewFilterContext(graph *model.Graph, pf config.PathFilterConfig, genericPredicates []string) FilterContext {
	degrees := make(map[string]int, len(graph.Nodes))
	for _, n := range graph.Nodes {
		degrees[n.Text] = graph.Degree(n.Text)
	}
	generic := make(map[string]struct{}, len(genericPredicates))
	for _, p := range genericPredicates {
		generic[strings.ToLower(p)] = struct{}{}
	}
	hub := pf.HubDegreeThreshold
	if hub == 0 {
		hub = 50
	}
	minConf := pf.MinConfidence
	return FilterContext{
		Degrees:            degrees,
		HubDegreeThreshold: hub,
		MinConfidence:      minConf,
		GenericPredicates:  generic,
		HasDirectEdge:      graph.HasEdge,
	}
}

type filterRule struct {
	name  string
	check func(h model.Hypothesis, ctx FilterContext) (bool, string)
}

var filterRules = []filterRule{
	{"hub_suppression", checkHubSuppression},
	{"predicate_semantics", checkPredicateSemantics},
	{"evidence_threshold", checkEvidenceThreshold},
	{"novelty", checkNovelty},
}

func checkHubSuppression(h model.Hypothesis, ctx FilterContext) (bool, string) {
	if len(h.Path) <= 2 {
		return true, ""
	}
	for _, n := range h.Path[1 : len(h.Path)-1] {
		if deg := ctx.Degrees[n]; deg > ctx.HubDegreeThreshold {
			return false, "node has degree above hub threshold"
		}
	}
	return true, ""
}

func checkPredicateSemantics(h model.Hypothesis, ctx FilterContext) (bool, string) {
	if len(h.Predicates) == 0 {
		return true, ""
	}
	for _, p := range h.Predicates {
		if _, generic := ctx.GenericPredicates[strings.ToLower(p)]; !generic {
			return true, ""
		}
	}
	return false, "all predicates are generic"
}

func checkEvidenceThreshold(h model.Hypothesis, ctx FilterContext) (bool, string) {
	if h.Confidence < ctx.MinConfidence {
		return false, "confidence below minimum threshold"
	}
	return true, ""
}

func checkNovelty(h model.Hypothesis, ctx FilterContext) (bool, string) {
	if ctx.HasDirectEdge != nil && ctx.HasDirectEdge(h.Source, h.Target) {
		return false, "direct edge exists between source and target"
	}
	return true, ""
}

// Filter applies the §4.5 ordered rejection rules to each hypothesis,
// short-circuiting on first failure, and sets PassedFilter/FilterReason
// in place. A hypothesis rejected only by evidence_threshold remains
// "promising" via model.Hypothesis.Promising.
func Filter(hyps []model.Hypothesis, ctx FilterContext) []model.Hypothesis {
	for i := range hyps {
		h := &hyps[i]
		h.PassedFilter = true
		h.FilterReason = nil
		for _, rule := range filterRules {
			ok, msg := rule.check(*h, ctx)
			if !ok {
				h.PassedFilter = false
				h.FilterReason = map[string]string{rule.name: msg}
				break
			}
		}
	}
	return hyps
}
