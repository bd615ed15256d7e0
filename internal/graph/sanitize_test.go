package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
	"github.com/litreview/engine/internal/model"
)

func TestClassifyNodeMetadataPatterns(t *testing.T) {
	empty := compiledRemoval{}
	assert.Equal(t, "metadata", classifyNode("2021", empty))
	assert.Equal(t, "metadata", classifyNode("10.1234/abcd", empty))
	assert.Equal(t, "metadata", classifyNode("https://example.com/paper", empty))
	assert.Equal(t, "metadata", classifyNode("arxiv:2105.00001", empty))
}

func TestClassifyNodeEntityAndCitation(t *testing.T) {
	empty := compiledRemoval{}
	assert.Equal(t, "entity", classifyNode("CRISPR", empty))
	assert.Equal(t, "entity", classifyNode("Transformer", empty))
	assert.Equal(t, "citation", classifyNode("see reference 12", empty))
}

func TestClassifyNodeNoiseBlacklistAndConfig(t *testing.T) {
	empty := compiledRemoval{}
	assert.Equal(t, "noise", classifyNode("the", empty))
	assert.Equal(t, "noise", classifyNode("...", empty))

	removal := compileRemovalRules(config.GraphRulesConfig{NodeRemovalExact: []string{"filler term"}})
	assert.Equal(t, "noise", classifyNode("filler term", removal))
}

func TestClassifyNodeConceptFallback(t *testing.T) {
	empty := compiledRemoval{}
	assert.Equal(t, "concept", classifyNode("gene expression regulation", empty))
}

func TestExtractMetadataYear(t *testing.T) {
	attr, val, ok := extractMetadata("2019")
	require.True(t, ok)
	assert.Equal(t, "year", attr)
	assert.Equal(t, "2019", val)
}

func TestExtractMetadataArxiv(t *testing.T) {
	attr, val, ok := extractMetadata("arxiv:2105.00001")
	require.True(t, ok)
	assert.Equal(t, "arxiv_id", attr)
	assert.Equal(t, "2105.00001", val)
}

func TestSanitizeDemotesMetadataAndRemovesNoise(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{Text: "gene expression"},
			{Text: "2021"},
			{Text: "the"},
		},
		Edges: []model.Edge{
			{Subject: "gene expression", Predicate: "has_year", Object: "2021"},
			{Subject: "gene expression", Predicate: "relates_to", Object: "the"},
		},
	}
	result := Sanitize(g, config.GraphRulesConfig{})

	// The metadata node survives in the node list (typed "metadata") even
	// though its demoting edge is dropped; only noise nodes are removed.
	require.Len(t, result.Graph.Nodes, 2)
	byText := make(map[string]model.Node, len(result.Graph.Nodes))
	for _, n := range result.Graph.Nodes {
		byText[n.Text] = n
	}
	assert.Equal(t, "concept", byText["gene expression"].Type)
	assert.Equal(t, "2021", byText["gene expression"].Attributes["year"])
	assert.Equal(t, "metadata", byText["2021"].Type)
	assert.Empty(t, result.Graph.Edges)
	assert.Equal(t, []string{"the"}, result.RemovedNodes)
}
