package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUnitLength(t *testing.T) {
	v := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)
}

func TestNormalizeZeroVectorUnchanged(t *testing.T) {
	v := Normalize([]float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, v)
}

func TestCosineSimilarityIdentical(t *testing.T) {
	a := []float64{1, 0, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	a := []float64{0, 0}
	b := []float64{1, 1}
	assert.Equal(t, 0.0, CosineSimilarity(a, b))
}
