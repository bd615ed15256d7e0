// Package config loads the AdminPolicy and per-job configuration surface
// described in SPEC_FULL.md §6. It is loaded once at process start and is
// immutable thereafter, mirroring the teacher's config.Initialize pattern.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DecisionThresholds holds the Rule-based Decision Provider's tuning
// constants (§4.7).
type DecisionThresholds struct {
	ConfidenceNormalizationFactor float64 `yaml:"confidence_normalization_factor" validate:"required,gt=0"`
	HighConfidenceThreshold       float64 `yaml:"high_confidence_threshold" validate:"required,gte=0,lte=1"`
	DominantGapRatio              float64 `yaml:"dominant_gap_ratio" validate:"required,gte=0,lte=1"`
	LowDiversityUniquePairsThreshold int  `yaml:"low_diversity_unique_pairs_threshold" validate:"required,min=1"`
	DiversityRatioThreshold       float64 `yaml:"diversity_ratio_threshold" validate:"required,gte=0,lte=1"`
	SparseGraphDensityThreshold   float64 `yaml:"sparse_graph_density_threshold" validate:"required,gte=0,lte=1"`
	PathSupportThreshold          int     `yaml:"path_support_threshold" validate:"required,min=1"`
	MinimumHypothesesThreshold    int     `yaml:"minimum_hypotheses_threshold" validate:"required,min=0"`
	PassedToTotalRatioThreshold   float64 `yaml:"passed_to_total_ratio_threshold" validate:"required,gte=0,lte=1"`
	TopKHypothesesToStore         int     `yaml:"top_k_hypotheses_to_store" validate:"required,min=1"`

	// StabilityCycleThreshold is parsed but deliberately unused by the
	// Decision Provider — see DESIGN.md Open Question decision #3.
	StabilityCycleThreshold int `yaml:"stability_cycle_threshold,omitempty"`
}

// SignalParams holds Signal Evaluator tuning (§4.10).
type SignalParams struct {
	PositiveThreshold    float64            `yaml:"positive_threshold" validate:"required"`
	NegativeThreshold    float64            `yaml:"negative_threshold" validate:"required"`
	ReputationPositive   int                `yaml:"reputation_positive_delta" validate:"required"`
	ReputationNegative   int                `yaml:"reputation_negative_delta" validate:"required"`
	MeasurementWeights   map[string]float64 `yaml:"measurement_weights" validate:"required"`
	MeasurementMaxDeltas map[string]float64 `yaml:"measurement_max_deltas" validate:"required"`
}

// QueryOrchestratorConfig holds Search-Query Orchestrator tuning (§4.9).
type QueryOrchestratorConfig struct {
	SignatureLength   int `yaml:"signature_length" validate:"required,min=8,max=64"`
	InitialReputation int `yaml:"initial_reputation"`
	MaxReuseAttempts  int `yaml:"max_reuse_attempts" validate:"required,min=1"`
	FetchBatchSize    int `yaml:"fetch_batch_size" validate:"required,min=1"`
	ResultsLimit      int `yaml:"results_limit" validate:"required,min=1"`
	TopKHypotheses    int `yaml:"top_k_hypotheses" validate:"required,min=1"`
	MinReputation     int `yaml:"min_reputation"`
}

// GraphMergingConfig holds the semantic-merge similarity threshold (§4.4).
type GraphMergingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"required,gte=0,lte=1"`
}

// GraphRulesConfig holds sanitization rule lists (§4.4).
type GraphRulesConfig struct {
	NodeRemovalPatterns []string `yaml:"node_removal_patterns,omitempty"`
	NodeRemovalExact    []string `yaml:"node_removal_exact,omitempty"`
	GenericPredicates   []string `yaml:"generic_predicates,omitempty"`
}

// PathFilterConfig tunes the Path Reasoner & Filter's ordered rejection
// rules (§4.5).
type PathFilterConfig struct {
	HubDegreeThreshold int `yaml:"hub_degree_threshold" validate:"omitempty,min=1"`
	MinConfidence      int `yaml:"min_confidence" validate:"omitempty,min=0"`
}

// IndirectPathConfig toggles and tunes indirect-path measurements (§4.6).
type IndirectPathConfig struct {
	Enabled               bool    `yaml:"enabled"`
	TemporalPlaceholders  bool    `yaml:"temporal_placeholders"`
	DominanceGapThreshold float64 `yaml:"dominance_gap_threshold"`
	MinLength             int     `yaml:"min_length" validate:"omitempty,min=2"`
	MaxLength             int     `yaml:"max_length" validate:"omitempty,min=2"`
}

// ExtractionConfig tunes the Extractor's region whitelist (§4.4's Extract
// sub-stage): which named sections survive into ingestion, which ones
// terminate scanning outright, and the column-layout heuristic used to
// order same-page blocks before the whitelist scan runs.
type ExtractionConfig struct {
	WhitelistedRegions  []string `yaml:"whitelisted_regions" validate:"required,min=1"`
	ExcludedRegions     []string `yaml:"excluded_regions"`
	ColumnWidthThreshold float64 `yaml:"column_width_threshold" validate:"required,gt=0"`
	FallbackToFullText  bool     `yaml:"fallback_to_full_text"`
}

// RefinementConfig tunes the LLM text-cleaning step of the Ingest
// sub-stage (§4.4): which source types get sent through the LLM cleaning
// prompt, and the span-chunking limits used to keep each call within the
// model's response budget.
type RefinementConfig struct {
	NeedsRefinementTypes []string `yaml:"needs_refinement_types" validate:"required,min=1"`
	MaxTokensPerSpan     int      `yaml:"max_tokens_per_span" validate:"required,min=1"`
	Temperature          float64  `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxRetries           int      `yaml:"max_retries" validate:"required,min=1"`
}

// SlicingConfig tunes the sentence-aware text-block segmentation step of
// the Ingest sub-stage (§4.4).
type SlicingConfig struct {
	Strategy         string `yaml:"strategy" validate:"required"`
	SentencesPerBlock int   `yaml:"sentences_per_block" validate:"required,min=1"`
	MaxTokensPerBlock int   `yaml:"max_tokens_per_block" validate:"required,min=1"`
}

// DomainAllowListEntry pairs one admin-configured domain label with the
// keywords that match it deterministically, before any LLM call (§4.9a).
type DomainAllowListEntry struct {
	Domain   string   `yaml:"domain" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1"`
}

// DomainResolverConfig tunes the Domain Resolver (§4.9a): a deterministic
// keyword allow-list checked first, then a closed-set LLM fallback over
// CandidateDomains, defaulting to DefaultDomain on any unparsable or
// empty response.
type DomainResolverConfig struct {
	AllowList       []DomainAllowListEntry `yaml:"allow_list"`
	CandidateDomains []string              `yaml:"candidate_domains" validate:"required,min=1"`
	DefaultDomain   string                 `yaml:"default_domain" validate:"required"`
}

// DownloadConfig tunes the Strategic Paper Downloader's retry and storage
// behavior (§4.3's DOWNLOAD_QUEUED stage). Grounded on
// original_source/backend/app/fetching/downloader.py's PaperDownloader,
// which reads its own retry/timeout knobs off
// admin_policy.query_orchestrator.fetch_params — split out here into its
// own block since this repo's QueryOrchestratorConfig has no fetch_params
// sub-object.
type DownloadConfig struct {
	BaseDir        string `yaml:"base_dir" validate:"required"`
	MaxRetries     int    `yaml:"max_retries" validate:"required,min=1"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"required,min=1"`
}

// AdminPolicy is the system-wide, immutable configuration surface (§6).
type AdminPolicy struct {
	DecisionThresholds    DecisionThresholds      `yaml:"decision_thresholds" validate:"required"`
	SignalParams          SignalParams            `yaml:"signal_params" validate:"required"`
	QueryOrchestrator     QueryOrchestratorConfig `yaml:"query_orchestrator" validate:"required"`
	GraphMerging          GraphMergingConfig      `yaml:"graph_merging" validate:"required"`
	GraphRules            GraphRulesConfig        `yaml:"graph_rules"`
	PathFilter            PathFilterConfig        `yaml:"path_filter"`
	IndirectPath          IndirectPathConfig      `yaml:"indirect_path"`
	Extraction            ExtractionConfig        `yaml:"extraction" validate:"required"`
	Refinement            RefinementConfig        `yaml:"refinement" validate:"required"`
	Slicing               SlicingConfig           `yaml:"slicing" validate:"required"`
	DomainResolver        DomainResolverConfig    `yaml:"domain_resolver" validate:"required"`
	Download              DownloadConfig          `yaml:"download" validate:"required"`
	SystemMaxPapersPerJob int                     `yaml:"system_max_papers_per_job" validate:"required,min=1"`
	DecisionProvider      string                  `yaml:"decision_provider" validate:"omitempty,oneof=rule_based hybrid llm"`
}

// ExpertSettings is the per-job expert-tuning block.
type ExpertSettings struct {
	Assumptions        []string `yaml:"assumptions,omitempty"`
	PreferredPredicates []string `yaml:"preferred_predicates,omitempty"`
	ExcludedEntities   []string `yaml:"excluded_entities,omitempty"`
}

// PathReasoningConfig is the per-job path-reasoning tuning block (§4.5/§6).
type PathReasoningConfig struct {
	Seeds     []string `yaml:"seeds,omitempty"`
	Stoplist  []string `yaml:"stoplist,omitempty"`
	AllowLen3 bool     `yaml:"allow_len3"`
	MaxHops   int      `yaml:"max_hops,omitempty" validate:"omitempty,min=2"`
}

// JobConfig is the per-job config captured at creation; immutable
// thereafter (§6).
type JobConfig struct {
	DomainOverride string              `yaml:"domain_override,omitempty" json:"domain_override,omitempty"`
	FocusAreas     []string            `yaml:"focus_areas,omitempty" json:"focus_areas,omitempty"`
	ExpertSettings ExpertSettings      `yaml:"expert_settings,omitempty" json:"expert_settings,omitempty"`
	PathReasoning  PathReasoningConfig `yaml:"path_reasoning,omitempty" json:"path_reasoning,omitempty"`
}

var validate = validator.New()

// LoadAdminPolicy reads and validates the AdminPolicy from a YAML file.
func LoadAdminPolicy(path string) (*AdminPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading admin policy %s: %w", path, err)
	}
	var p AdminPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing admin policy %s: %w", path, err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("validating admin policy %s: %w", path, err)
	}
	return &p, nil
}

// Default returns an AdminPolicy with the literal thresholds named in
// SPEC_FULL.md's decision-rule prose, for tests and local development.
func Default() *AdminPolicy {
	return &AdminPolicy{
		DecisionThresholds: DecisionThresholds{
			ConfidenceNormalizationFactor:    10,
			HighConfidenceThreshold:          0.75,
			DominantGapRatio:                 0.2,
			LowDiversityUniquePairsThreshold: 3,
			DiversityRatioThreshold:          0.3,
			SparseGraphDensityThreshold:      0.05,
			PathSupportThreshold:             2,
			MinimumHypothesesThreshold:       1,
			PassedToTotalRatioThreshold:      0.2,
			TopKHypothesesToStore:            10,
		},
		SignalParams: SignalParams{
			PositiveThreshold:  1.0,
			NegativeThreshold:  -1.0,
			ReputationPositive: 10,
			ReputationNegative: -20,
			MeasurementWeights: map[string]float64{
				"passed_hypothesis_count":  1.0,
				"mean_confidence":          0.8,
				"graph_density":            0.5,
				"filtered_to_total_ratio":  0.3,
			},
			MeasurementMaxDeltas: map[string]float64{
				"passed_hypothesis_count":  100.0,
				"mean_confidence":          20.0,
				"graph_density":            0.2,
				"filtered_to_total_ratio":  0.5,
			},
		},
		QueryOrchestrator: QueryOrchestratorConfig{
			SignatureLength:   64,
			InitialReputation: 0,
			MaxReuseAttempts:  3,
			FetchBatchSize:    10,
			ResultsLimit:      20,
			TopKHypotheses:    5,
			MinReputation:     -50,
		},
		GraphMerging: GraphMergingConfig{SimilarityThreshold: 0.85},
		GraphRules: GraphRulesConfig{
			GenericPredicates: []string{"related_to", "associated_with"},
		},
		PathFilter: PathFilterConfig{
			HubDegreeThreshold: 50,
			MinConfidence:      2,
		},
		IndirectPath: IndirectPathConfig{
			Enabled:               true,
			DominanceGapThreshold: 0.2,
			MinLength:             2,
			MaxLength:             3,
		},
		Extraction: ExtractionConfig{
			WhitelistedRegions:   []string{"abstract", "introduction", "body", "methods", "results", "conclusion"},
			ExcludedRegions:      []string{"references", "bibliography"},
			ColumnWidthThreshold: 20,
			FallbackToFullText:   true,
		},
		Refinement: RefinementConfig{
			NeedsRefinementTypes: []string{"pdf_text", "user_text"},
			MaxTokensPerSpan:     1200,
			Temperature:          0.0,
			MaxRetries:           3,
		},
		Slicing: SlicingConfig{
			Strategy:          "sentences",
			SentencesPerBlock: 3,
			MaxTokensPerBlock: 300,
		},
		DomainResolver: DomainResolverConfig{
			AllowList: []DomainAllowListEntry{
				{Domain: "biomedical", Keywords: []string{"gene", "protein", "cell", "disease", "clinical", "patient", "drug"}},
				{Domain: "computer_science", Keywords: []string{"algorithm", "model", "network", "dataset", "training", "learning"}},
				{Domain: "physics", Keywords: []string{"particle", "quantum", "energy", "field", "wave"}},
			},
			CandidateDomains: []string{"biomedical", "computer_science", "physics", "chemistry", "mathematics", "engineering"},
			DefaultDomain:    "computer_science",
		},
		Download: DownloadConfig{
			BaseDir:        "downloads",
			MaxRetries:     3,
			TimeoutSeconds: 30,
		},
		SystemMaxPapersPerJob: 200,
		DecisionProvider:      "rule_based",
	}
}
