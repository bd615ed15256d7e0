// Package measurement implements the Measurement Engine (C6): a pure
// function from (graph, hypotheses, job metadata, optional previous
// snapshot) to a typed measurements snapshot, with no I/O. Grounded
// field-for-field on original_source/backend/app/decision/measurements.py.
package measurement

import (
	"math"

	"github.com/litreview/engine/internal/model"
)

// JobMetadata carries the few job-level facts the engine needs without
// depending on internal/store.
type JobMetadata struct {
	Mode model.Mode
}

// PairStats summarizes one (source, target) group of passed hypotheses
// for the indirect-path measurements.
type PairStats struct {
	Source         string
	Target         string
	Count          int
	MaxConfidence  int
	MeanConfidence float64
}

// Snapshot is the typed measurements record (§9: declared struct, not a
// map, between stages — serialized to JSONB only at the DecisionResult
// persistence boundary).
type Snapshot struct {
	// Verification-mode short-circuit fields; all other fields are
	// elided (left zero) when Mode == verification.
	VerificationComplete bool   `json:"verification_complete,omitempty"`
	VerificationFound    bool   `json:"verification_found,omitempty"`
	VerificationType     string `json:"verification_type,omitempty"`

	TotalCount     int `json:"total_count"`
	PassedCount    int `json:"passed_count"`
	PromisingCount int `json:"promising_count"`

	MaxNormalizedConfidence  float64 `json:"max_normalized_confidence"`
	MeanNormalizedConfidence float64 `json:"mean_normalized_confidence"`
	IsDominantClear          bool    `json:"is_dominant_clear"`

	UniqueSourceTargetPairs int     `json:"unique_source_target_pairs"`
	UniqueNodesInPaths      int     `json:"unique_nodes_in_paths"`
	DiversityScore          float64 `json:"diversity_score"`

	GraphDensity            float64 `json:"graph_density"`
	SemanticGraphNodeCount  int     `json:"semantic_graph_node_count"`
	SemanticGraphEdgeCount  int     `json:"semantic_graph_edge_count"`

	// Indirect-path measurements (populated when enabled in config).
	MaxPathsPerPair                 int                `json:"max_paths_per_pair,omitempty"`
	MeanPathsPerPair                float64            `json:"mean_paths_per_pair,omitempty"`
	DominantPairID                  string             `json:"dominant_pair_id,omitempty"`
	DominantPairPathRatio           float64            `json:"dominant_pair_path_ratio,omitempty"`
	UniqueIntermediateNodesDominant int                `json:"unique_intermediate_nodes_dominant,omitempty"`
	RedundancyScore                 float64            `json:"redundancy_score,omitempty"`
	MeanPathLength                  float64            `json:"mean_path_length,omitempty"`
	PathLengthVariance              float64            `json:"path_length_variance,omitempty"`
	DominantConfidenceGap           float64            `json:"dominant_confidence_gap,omitempty"`
	PairDistributionEntropy         float64            `json:"pair_distribution_entropy,omitempty"`
	FilterRejectionReasons          map[string]int      `json:"filter_rejection_reasons,omitempty"`

	// Temporal measurements (populated only when a previous snapshot is
	// supplied).
	EvidenceGrowthRate  float64 `json:"evidence_growth_rate,omitempty"`
	HypothesisStability float64 `json:"hypothesis_stability,omitempty"`
	GrowthScore         float64 `json:"growth_score,omitempty"`

	// passedPairKeys is the set of (source, target) keys behind passed
	// hypotheses this cycle, carried only to compute hypothesis_stability
	// against the next cycle's snapshot — never persisted (unexported).
	passedPairKeys map[string]struct{}
}

// IndirectPathOptions toggles the §4.6 indirect-path measurement block,
// mirroring AdminPolicy's indirect_path config.
type IndirectPathOptions struct {
	Enabled               bool
	DominanceGapThreshold float64
}

// VerificationInput supplies the short-circuit facts for verification-mode
// jobs (§4.6).
type VerificationInput struct {
	RemainingNewQueries int
	Result              *model.VerificationResult
}

// Compute is the C6 pure function. normFactor is
// CONFIDENCE_NORMALIZATION_FACTOR, dominantGapRatio is DOMINANT_GAP_RATIO.
func Compute(
	graph *model.Graph,
	hypotheses []model.Hypothesis,
	meta JobMetadata,
	previous *Snapshot,
	normFactor float64,
	dominantGapRatio float64,
	indirect IndirectPathOptions,
	verification *VerificationInput,
) Snapshot {
	if meta.Mode == model.ModeVerification && verification != nil {
		return computeVerification(*verification)
	}

	var s Snapshot
	s.TotalCount = len(hypotheses)

	var passed, promising []model.Hypothesis
	for _, h := range hypotheses {
		if h.PassedFilter {
			passed = append(passed, h)
		} else if h.Promising() {
			promising = append(promising, h)
		}
	}
	s.PassedCount = len(passed)
	s.PromisingCount = len(promising)

	computeConfidence(&s, passed, normFactor, dominantGapRatio)
	computeDiversity(&s, passed)
	computeGraphStats(&s, graph)

	if indirect.Enabled {
		computeIndirectPath(&s, hypotheses, passed, indirect.DominanceGapThreshold)
	}

	if previous != nil {
		computeTemporal(&s, previous)
	}

	return s
}

func computeVerification(v VerificationInput) Snapshot {
	s := Snapshot{VerificationComplete: v.RemainingNewQueries == 0}
	if v.Result != nil && v.Result.ConnectionFound != nil {
		s.VerificationFound = *v.Result.ConnectionFound
		s.VerificationType = v.Result.ConnectionType
	}
	return s
}

func computeConfidence(s *Snapshot, passed []model.Hypothesis, normFactor, dominantGapRatio float64) {
	if len(passed) == 0 || normFactor <= 0 {
		return
	}
	var maxC, sumC float64
	for i, h := range passed {
		c := float64(h.Confidence) / normFactor
		if c > 1.0 {
			c = 1.0
		}
		sumC += c
		if i == 0 || c > maxC {
			maxC = c
		}
	}
	s.MaxNormalizedConfidence = maxC
	s.MeanNormalizedConfidence = sumC / float64(len(passed))

	if len(passed) >= 2 {
		sorted := sortedConfidences(passed, normFactor)
		c1, c2 := sorted[0], sorted[1]
		s.IsDominantClear = (c1 - c2) > dominantGapRatio*c1
	}
}

func sortedConfidences(passed []model.Hypothesis, normFactor float64) []float64 {
	vals := make([]float64, len(passed))
	for i, h := range passed {
		c := float64(h.Confidence) / normFactor
		if c > 1.0 {
			c = 1.0
		}
		vals[i] = c
	}
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && vals[j] > vals[j-1]; j-- {
			vals[j], vals[j-1] = vals[j-1], vals[j]
		}
	}
	return vals
}

func computeDiversity(s *Snapshot, passed []model.Hypothesis) {
	pairs := make(map[string]struct{})
	nodes := make(map[string]struct{})
	totalNodeOccurrences := 0
	for _, h := range passed {
		pairs[h.Source+"\x00"+h.Target] = struct{}{}
		for _, n := range h.Path {
			nodes[n] = struct{}{}
			totalNodeOccurrences++
		}
	}
	s.UniqueSourceTargetPairs = len(pairs)
	s.UniqueNodesInPaths = len(nodes)
	s.passedPairKeys = pairs
	if totalNodeOccurrences > 0 {
		s.DiversityScore = float64(len(nodes)) / float64(totalNodeOccurrences)
	}
}

func computeGraphStats(s *Snapshot, g *model.Graph) {
	if g == nil {
		return
	}
	s.SemanticGraphNodeCount = len(g.Nodes)
	s.SemanticGraphEdgeCount = len(g.Edges)
	n := float64(len(g.Nodes))
	if n >= 2 {
		s.GraphDensity = float64(len(g.Edges)) / (n * (n - 1))
	}
}

func computeIndirectPath(s *Snapshot, all, passed []model.Hypothesis, dominanceGapThreshold float64) {
	groups := make(map[string]*PairStats)
	order := make([]string, 0)
	for _, h := range passed {
		key := h.Source + "\x00" + h.Target
		g, ok := groups[key]
		if !ok {
			g = &PairStats{Source: h.Source, Target: h.Target}
			groups[key] = g
			order = append(order, key)
		}
		g.Count++
		if h.Confidence > g.MaxConfidence {
			g.MaxConfidence = h.Confidence
		}
		g.MeanConfidence += float64(h.Confidence)
	}
	if len(groups) == 0 {
		return
	}
	for _, key := range order {
		groups[key].MeanConfidence /= float64(groups[key].Count)
	}

	var (
		maxPaths       int
		totalPaths     int
		dominantKey    string
		dominantMean   = -1.0
	)
	for _, key := range order {
		g := groups[key]
		totalPaths += g.Count
		if g.Count > maxPaths {
			maxPaths = g.Count
		}
		if g.MeanConfidence > dominantMean {
			dominantMean = g.MeanConfidence
			dominantKey = key
		}
	}
	s.MaxPathsPerPair = maxPaths
	s.MeanPathsPerPair = float64(totalPaths) / float64(len(groups))
	s.DominantPairID = dominantKey

	dominant := groups[dominantKey]
	var dominantIntermediates = make(map[string]struct{})
	var totalOccurrences, dominantHypoCount, dominantDistinctPaths int
	seenPaths := make(map[string]struct{})
	for _, h := range passed {
		key := h.Source + "\x00" + h.Target
		if key != dominantKey {
			continue
		}
		dominantHypoCount++
		pathKey := joinPath(h.Path)
		if _, ok := seenPaths[pathKey]; !ok {
			seenPaths[pathKey] = struct{}{}
			dominantDistinctPaths++
		}
		for i, n := range h.Path {
			if i == 0 || i == len(h.Path)-1 {
				continue
			}
			dominantIntermediates[n] = struct{}{}
			totalOccurrences++
		}
	}
	s.UniqueIntermediateNodesDominant = len(dominantIntermediates)
	if dominantHypoCount > 0 {
		s.DominantPairPathRatio = float64(dominantDistinctPaths) / float64(dominantHypoCount)
	}
	if totalOccurrences > 0 {
		s.RedundancyScore = float64(totalOccurrences-len(dominantIntermediates)) / float64(totalOccurrences)
	}

	var sumLen, sumLenSq float64
	for _, h := range passed {
		l := float64(len(h.Path))
		sumLen += l
		sumLenSq += l * l
	}
	n := float64(len(passed))
	if n > 0 {
		s.MeanPathLength = sumLen / n
		mean := s.MeanPathLength
		s.PathLengthVariance = sumLenSq/n - mean*mean
	}

	if len(order) >= 2 {
		maxes := make([]int, 0, len(order))
		for _, key := range order {
			maxes = append(maxes, groups[key].MaxConfidence)
		}
		for i := 1; i < len(maxes); i++ {
			for j := i; j > 0 && maxes[j] > maxes[j-1]; j-- {
				maxes[j], maxes[j-1] = maxes[j-1], maxes[j]
			}
		}
		// Confidence gap measures how dominant the top pair is: the
		// fractional drop from the top pair's max confidence to the
		// runner-up's, not a raw difference between means.
		if maxes[0] > 0 {
			s.DominantConfidenceGap = float64(maxes[0]-maxes[1]) / float64(maxes[0])
		}
	}

	if totalPaths > 0 {
		var entropy float64
		for _, key := range order {
			p := float64(groups[key].Count) / float64(totalPaths)
			if p > 0 {
				entropy -= p * math.Log2(p)
			}
		}
		s.PairDistributionEntropy = entropy
	}

	reasons := make(map[string]int)
	for _, h := range all {
		if h.PassedFilter {
			continue
		}
		for reason := range h.FilterReason {
			reasons[reason]++
		}
	}
	if len(reasons) > 0 {
		s.FilterRejectionReasons = reasons
	}
	_ = dominanceGapThreshold // reserved for a future dominance-confidence classification rule
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "\x00"
		}
		out += p
	}
	return out
}

func computeTemporal(s *Snapshot, previous *Snapshot) {
	if previous.PassedCount > 0 {
		s.EvidenceGrowthRate = float64(s.PassedCount-previous.PassedCount) / float64(previous.PassedCount)
	} else {
		s.EvidenceGrowthRate = float64(s.PassedCount)
	}

	if len(previous.passedPairKeys) > 0 {
		overlap := 0
		for key := range s.passedPairKeys {
			if _, ok := previous.passedPairKeys[key]; ok {
				overlap++
			}
		}
		s.HypothesisStability = float64(overlap) / float64(len(previous.passedPairKeys))
	}

	s.GrowthScore = float64(s.UniqueNodesInPaths-previous.UniqueNodesInPaths) +
		(s.DiversityScore - previous.DiversityScore) +
		float64(s.PassedCount-previous.PassedCount)
}
