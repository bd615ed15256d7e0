package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/measurement"
	"github.com/litreview/engine/internal/model"
)

func TestDecodeJobConfigNilReturnsZeroValue(t *testing.T) {
	cfg, err := decodeJobConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.DomainOverride)
	assert.Empty(t, cfg.PathReasoning.Seeds)
}

func TestDecodeJobConfigRoundTripsPathReasoning(t *testing.T) {
	raw := map[string]any{
		"path_reasoning": map[string]any{
			"seeds":      []any{"BRCA1", "breast cancer"},
			"stoplist":   []any{"the", "a"},
			"allow_len3": true,
			"max_hops":   3,
		},
		"domain_override": "biomedical",
	}
	cfg, err := decodeJobConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, "biomedical", cfg.DomainOverride)
	assert.Equal(t, []string{"BRCA1", "breast cancer"}, cfg.PathReasoning.Seeds)
	assert.True(t, cfg.PathReasoning.AllowLen3)
	assert.Equal(t, 3, cfg.PathReasoning.MaxHops)
}

func TestPathReasoningOptionsExploreModeWithNoSeeds(t *testing.T) {
	cfg, err := decodeJobConfig(nil)
	require.NoError(t, err)
	opts := pathReasoningOptions(cfg)
	assert.Equal(t, "explore", opts.Mode)
	assert.Empty(t, opts.Seeds)
}

func TestPathReasoningOptionsQueryModeWithSeeds(t *testing.T) {
	cfg, err := decodeJobConfig(map[string]any{
		"path_reasoning": map[string]any{"seeds": []any{"X"}},
	})
	require.NoError(t, err)
	opts := pathReasoningOptions(cfg)
	assert.Equal(t, "query", opts.Mode)
	assert.Equal(t, []string{"X"}, opts.Seeds)
}

func TestSnapshotToMapAndDecodeSnapshotRoundTrip(t *testing.T) {
	s := measurement.Snapshot{
		TotalCount:              4,
		PassedCount:             2,
		MaxNormalizedConfidence: 0.9,
		GraphDensity:            0.12,
	}
	m, err := snapshotToMap(s)
	require.NoError(t, err)

	decoded, err := decodeSnapshot(m)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, s.TotalCount, decoded.TotalCount)
	assert.Equal(t, s.PassedCount, decoded.PassedCount)
	assert.Equal(t, s.MaxNormalizedConfidence, decoded.MaxNormalizedConfidence)
}

func TestDecodeSnapshotNilReturnsNil(t *testing.T) {
	decoded, err := decodeSnapshot(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestPaperFoundPayloadCarriesJobAndPaperIDs(t *testing.T) {
	p := &model.Paper{ID: "paper-1", Title: "A Study"}
	payload := paperFoundPayload(42, p)
	assert.Equal(t, int64(42), payload.JobID)
	assert.Equal(t, "paper-1", payload.PaperID)
	assert.Equal(t, "A Study", payload.Title)
}
