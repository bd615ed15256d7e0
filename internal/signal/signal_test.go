package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litreview/engine/internal/config"
)

func testSignalParams() config.SignalParams {
	return config.SignalParams{
		PositiveThreshold: 1.0,
		NegativeThreshold: -1.0,
		ReputationPositive: 10,
		ReputationNegative: -20,
		MeasurementWeights: map[string]float64{
			"passed_hypothesis_count": 1.0,
			"mean_confidence":         0.8,
			"graph_density":           0.5,
			"filtered_to_total_ratio": 0.3,
		},
		MeasurementMaxDeltas: map[string]float64{
			"passed_hypothesis_count": 100.0,
			"mean_confidence":         20.0,
			"graph_density":           0.2,
			"filtered_to_total_ratio": 0.5,
		},
	}
}

func TestFilteredToTotalRatioZeroTotal(t *testing.T) {
	assert.Equal(t, 0.0, filteredToTotalRatio(map[string]any{"total_count": 0.0}))
}

func TestFilteredToTotalRatioComputesFraction(t *testing.T) {
	snapshot := map[string]any{"total_count": 10.0, "passed_count": 4.0}
	assert.Equal(t, 0.4, filteredToTotalRatio(snapshot))
}

func TestClassifyWinOnLargePositiveDelta(t *testing.T) {
	prev := map[string]any{"passed_count": 2.0, "total_count": 10.0, "mean_normalized_confidence": 0.4, "graph_density": 0.1}
	curr := map[string]any{"passed_count": 20.0, "total_count": 10.0, "mean_normalized_confidence": 0.9, "graph_density": 0.15}

	params := testSignalParams()
	delta := weightedDelta(prev, curr, params)
	class := classify(delta, params)

	assert.Equal(t, classWin, class)
}

func TestClassifyLossOnLargeNegativeDelta(t *testing.T) {
	prev := map[string]any{"passed_count": 20.0, "total_count": 10.0, "mean_normalized_confidence": 0.9, "graph_density": 0.15}
	curr := map[string]any{"passed_count": 0.0, "total_count": 10.0, "mean_normalized_confidence": 0.1, "graph_density": 0.0}

	params := testSignalParams()
	delta := weightedDelta(prev, curr, params)
	class := classify(delta, params)

	assert.Equal(t, classLoss, class)
}

func TestClassifyNoSignalOnFlatDelta(t *testing.T) {
	snapshot := map[string]any{"passed_count": 5.0, "total_count": 10.0, "mean_normalized_confidence": 0.5, "graph_density": 0.1}

	params := testSignalParams()
	delta := weightedDelta(snapshot, snapshot, params)
	class := classify(delta, params)

	assert.Equal(t, classNoSignal, class)
}

func TestMeasurementValueMissingKeyDefaultsToZero(t *testing.T) {
	assert.Equal(t, 0.0, measurementValue(map[string]any{}, "missing"))
}
