package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferencesAnyTripleTrueOnOverlap(t *testing.T) {
	set := map[string]bool{"t1": true, "t2": true}
	assert.True(t, referencesAnyTriple([]string{"t9", "t2"}, set))
}

func TestReferencesAnyTripleFalseWithoutOverlap(t *testing.T) {
	set := map[string]bool{"t1": true}
	assert.False(t, referencesAnyTriple([]string{"t9", "t8"}, set))
}

func TestReferencesAnyTripleFalseOnEmptyInput(t *testing.T) {
	set := map[string]bool{"t1": true}
	assert.False(t, referencesAnyTriple(nil, set))
}
