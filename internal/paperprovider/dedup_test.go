package paperprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTextMatchesPythonBehavior(t *testing.T) {
	assert.Equal(t, "", normalizeText(""))
	assert.Equal(t, "graph neural networks", normalizeText("  Graph Neural Networks!  "))
	assert.Equal(t, "a b c", normalizeText("A, B & C."))
	assert.Equal(t, "hello world", normalizeText("Hello   \n\tWorld"))
}

func TestFingerprintStableAndCaseInsensitive(t *testing.T) {
	fp1 := Fingerprint("Graph Neural Networks", "Ada Lovelace", 2021)
	fp2 := Fingerprint("graph neural networks", "ADA LOVELACE", 2021)
	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64) // hex-encoded sha256
}

func TestFingerprintDiffersOnYear(t *testing.T) {
	fp1 := Fingerprint("Graph Neural Networks", "Ada Lovelace", 2021)
	fp2 := Fingerprint("Graph Neural Networks", "Ada Lovelace", 2022)
	assert.NotEqual(t, fp1, fp2)
}

func TestFingerprintOf(t *testing.T) {
	p := FetchedPaper{Title: "A Study", Authors: []string{"Grace Hopper", "Alan Turing"}, Year: 1950}
	assert.Equal(t, Fingerprint("A Study", "Grace Hopper", 1950), FingerprintOf(p))
}
