package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/litreview/engine/internal/cache"
	"github.com/litreview/engine/internal/embedding"
	"github.com/litreview/engine/internal/model"
)

// MergeSummary mirrors semantic.py's return "summary" block, persisted
// alongside the merged graph for observability.
type MergeSummary struct {
	ConceptNodesFiltered int
	ClustersFormed       int
	NodesMerged          int
	EdgesBefore          int
	EdgesAfter           int
	SimilarityThreshold  float64
}

// embeddedNode pairs a concept node with its cached-or-freshly-computed
// normalized embedding.
type embeddedNode struct {
	node   model.Node
	vector []float64
}

func isConceptEligible(n model.Node) bool {
	if n.Type != "concept" {
		return false
	}
	text := strings.TrimSpace(n.Text)
	if len(text) < 2 {
		return false
	}
	if strings.Contains(text, "://") {
		return false
	}
	allDigits := true
	for _, r := range text {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	return !allDigits
}

// resolveEmbeddings looks up each concept text in the embedding cache,
// falling back to the Embedder collaborator for misses and writing the
// result back, per §4.4's embedding-cache paragraph.
func resolveEmbeddings(ctx context.Context, c *cache.Cache, embedder embedding.Embedder, nodes []model.Node) ([]embeddedNode, error) {
	out := make([]embeddedNode, len(nodes))
	var missIdx []int
	var missTexts []string

	for i, n := range nodes {
		out[i] = embeddedNode{node: n}
		if c == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, n.Text)
			continue
		}
		vec, found, err := c.GetEmbedding(ctx, n.Text)
		if err != nil {
			return nil, fmt.Errorf("reading embedding cache for %q: %w", n.Text, err)
		}
		if found {
			out[i].vector = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, n.Text)
	}

	if len(missTexts) > 0 {
		vecs, err := embedder.Embed(ctx, missTexts)
		if err != nil {
			return nil, fmt.Errorf("embedding concept texts: %w", err)
		}
		for j, idx := range missIdx {
			out[idx].vector = vecs[j]
			if c != nil {
				if err := c.PutEmbedding(ctx, nodes[idx].Text, vecs[j]); err != nil {
					return nil, fmt.Errorf("caching embedding for %q: %w", nodes[idx].Text, err)
				}
			}
		}
	}

	return out, nil
}

// clusterByThreshold performs single-pass average-linkage agglomerative
// clustering equivalent to scipy/sklearn's AgglomerativeClustering with
// distance_threshold = 1 - similarity_threshold, metric cosine, linkage
// average: start with every vector in its own cluster, repeatedly merge
// the closest pair of clusters (by average pairwise cosine distance)
// while that distance is below the threshold. Grounded on semantic.py's
// _cluster_concepts; no clustering library exists in this module's
// dependency surface, so the merge step is implemented directly (see
// DESIGN.md).
func clusterByThreshold(vectors [][]float64, similarityThreshold float64) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	if n <= 1 {
		return labels
	}
	distanceThreshold := 1.0 - similarityThreshold

	members := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		members[i] = []int{i}
	}

	avgDistance := func(a, b []int) float64 {
		var sum float64
		for _, i := range a {
			for _, j := range b {
				sum += 1.0 - embedding.CosineSimilarity(vectors[i], vectors[j])
			}
		}
		return sum / float64(len(a)*len(b))
	}

	for {
		bestDist := distanceThreshold
		bestA, bestB := -1, -1
		var clusterIDs []int
		for id := range members {
			clusterIDs = append(clusterIDs, id)
		}
		sort.Ints(clusterIDs)
		for i := 0; i < len(clusterIDs); i++ {
			for j := i + 1; j < len(clusterIDs); j++ {
				a, b := clusterIDs[i], clusterIDs[j]
				d := avgDistance(members[a], members[b])
				if d <= bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		if bestA == -1 {
			break
		}
		members[bestA] = append(members[bestA], members[bestB]...)
		delete(members, bestB)
		for _, idx := range members[bestA] {
			labels[idx] = bestA
		}
	}

	return labels
}

// edgeDegree counts how many edges reference a node text, used as the
// canonical-label tie-break.
func edgeDegree(edges []model.Edge, text string) int {
	n := 0
	for _, e := range edges {
		if e.Subject == text || e.Object == text {
			n++
		}
	}
	return n
}

// selectCanonical picks, per cluster, the shortest member text (ties
// broken by highest original-graph degree) as the canonical label, and
// returns every other member as an alias. Grounded on semantic.py's
// _select_canonical_labels.
func selectCanonical(nodes []embeddedNode, labels []int, edges []model.Edge) map[int]struct {
	canonical string
	aliases   []string
} {
	clusters := make(map[int][]int)
	for idx, label := range labels {
		clusters[label] = append(clusters[label], idx)
	}

	result := make(map[int]struct {
		canonical string
		aliases   []string
	}, len(clusters))

	for clusterID, idxs := range clusters {
		texts := make([]string, len(idxs))
		for i, idx := range idxs {
			texts[i] = nodes[idx].node.Text
		}
		sort.Slice(texts, func(i, j int) bool {
			if len(texts[i]) != len(texts[j]) {
				return len(texts[i]) < len(texts[j])
			}
			return edgeDegree(edges, texts[i]) > edgeDegree(edges, texts[j])
		})
		canonical := texts[0]
		var aliases []string
		for _, t := range texts[1:] {
			aliases = append(aliases, t)
		}
		result[clusterID] = struct {
			canonical string
			aliases   []string
		}{canonical: canonical, aliases: aliases}
	}
	return result
}

func clusterScore(members []int, vectors [][]float64) float64 {
	if len(members) == 0 {
		return 1.0
	}
	dim := len(vectors[members[0]])
	centroid := make([]float64, dim)
	for _, idx := range members {
		for d := 0; d < dim; d++ {
			centroid[d] += vectors[idx][d]
		}
	}
	for d := range centroid {
		centroid[d] /= float64(len(members))
	}
	centroid = embedding.Normalize(centroid)

	var sum float64
	for _, idx := range members {
		sum += embedding.CosineSimilarity(vectors[idx], centroid)
	}
	return sum / float64(len(members))
}

// rewriteEdges rewrites every edge's endpoints to their canonical
// cluster label, drops self-loops created by the collapse, and sums
// support on edges that become duplicates. Predicates are preserved
// verbatim. Grounded on semantic.py's _rewrite_edges.
func rewriteEdges(edges []model.Edge, textToCanonical map[string]string) []model.Edge {
	type key struct{ subject, predicate, object string }
	grouped := make(map[key]*model.Edge)
	var order []key

	for _, e := range edges {
		newSubj := e.Subject
		if c, ok := textToCanonical[e.Subject]; ok {
			newSubj = c
		}
		newObj := e.Object
		if c, ok := textToCanonical[e.Object]; ok {
			newObj = c
		}
		if newSubj == newObj {
			continue
		}
		k := key{newSubj, e.Predicate, newObj}
		existing, ok := grouped[k]
		if !ok {
			copied := e
			copied.Subject, copied.Object = newSubj, newObj
			grouped[k] = &copied
			order = append(order, k)
			continue
		}
		existing.Support += e.Support
		existing.TripleIDs = mergeUnique(existing.TripleIDs, e.TripleIDs)
		existing.BlockIDs = mergeUnique(existing.BlockIDs, e.BlockIDs)
		existing.SourceIDs = mergeUnique(existing.SourceIDs, e.SourceIDs)
	}

	out := make([]model.Edge, 0, len(order))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// MergeSemantic performs Phase-3 semantic merging on a sanitized graph:
// filter to concept nodes, embed (via cache with Embedder fallback),
// agglomeratively cluster by cosine distance, pick a canonical label per
// cluster, and rewrite edges to canonical endpoints. Grounded on
// original_source/backend/app/graphs/semantic.py's merge_semantically.
func MergeSemantic(ctx context.Context, c *cache.Cache, embedder embedding.Embedder, sanitized model.Graph, similarityThreshold float64) (model.Graph, MergeSummary, error) {
	var concepts []model.Node
	var others []model.Node
	for _, n := range sanitized.Nodes {
		if isConceptEligible(n) {
			concepts = append(concepts, n)
		} else {
			others = append(others, n)
		}
	}

	if len(concepts) == 0 {
		return model.Graph{Nodes: others, Edges: sanitized.Edges}, MergeSummary{
			EdgesBefore: len(sanitized.Edges),
			EdgesAfter:  len(sanitized.Edges),
		}, nil
	}

	embedded, err := resolveEmbeddings(ctx, c, embedder, concepts)
	if err != nil {
		return model.Graph{}, MergeSummary{}, err
	}

	vectors := make([][]float64, len(embedded))
	for i, e := range embedded {
		vectors[i] = e.vector
	}

	labels := clusterByThreshold(vectors, similarityThreshold)
	canonicalMap := selectCanonical(embedded, labels, sanitized.Edges)

	textToCanonical := make(map[string]string, len(concepts))
	for idx, n := range concepts {
		textToCanonical[n.Text] = canonicalMap[labels[idx]].canonical
	}

	clusterMembers := make(map[int][]int)
	for idx, label := range labels {
		clusterMembers[label] = append(clusterMembers[label], idx)
	}

	nodeByText := make(map[string]model.Node, len(concepts))
	for _, n := range concepts {
		nodeByText[n.Text] = n
	}

	semanticNodes := make([]model.Node, 0, len(canonicalMap)+len(others))
	var clusterIDs []int
	for id := range canonicalMap {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)
	for _, clusterID := range clusterIDs {
		entry := canonicalMap[clusterID]
		orig, ok := nodeByText[entry.canonical]
		if !ok && len(concepts) > 0 {
			orig = concepts[0]
		}
		semanticNodes = append(semanticNodes, model.Node{
			Text:         entry.canonical,
			Type:         "concept",
			Aliases:      entry.aliases,
			Attributes:   orig.Attributes,
			ClusterScore: clusterScore(clusterMembers[clusterID], vectors),
		})
	}
	semanticNodes = append(semanticNodes, others...)

	semanticEdges := rewriteEdges(sanitized.Edges, textToCanonical)

	summary := MergeSummary{
		ConceptNodesFiltered: len(concepts),
		ClustersFormed:       len(canonicalMap),
		NodesMerged:          len(concepts) - len(canonicalMap),
		EdgesBefore:          len(sanitized.Edges),
		EdgesAfter:           len(semanticEdges),
		SimilarityThreshold:  similarityThreshold,
	}

	return model.Graph{Nodes: semanticNodes, Edges: semanticEdges}, summary, nil
}
