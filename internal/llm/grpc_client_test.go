package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litreview/engine/internal/config"
)

func TestBuildRequestUsesConfigDefaults(t *testing.T) {
	cfg := config.LLMConfig{Model: "test-model", Temperature: 0.2, MaxTokens: 512}

	req, err := buildRequest("hello", GenerateOptions{}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "hello", req.Fields["prompt"].GetStringValue())
	assert.Equal(t, "test-model", req.Fields["model"].GetStringValue())
	assert.InDelta(t, 0.2, req.Fields["temperature"].GetNumberValue(), 1e-9)
	assert.InDelta(t, 512, req.Fields["max_tokens"].GetNumberValue(), 1e-9)
	_, hasTopP := req.Fields["top_p"]
	assert.False(t, hasTopP)
}

func TestBuildRequestHonorsPerCallOverrides(t *testing.T) {
	cfg := config.LLMConfig{Model: "test-model", Temperature: 0.2, MaxTokens: 512}
	temp := 0.9
	maxTokens := 64
	topP := 0.5

	req, err := buildRequest("hello", GenerateOptions{Temperature: &temp, MaxTokens: &maxTokens, TopP: &topP}, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, req.Fields["temperature"].GetNumberValue(), 1e-9)
	assert.InDelta(t, 64, req.Fields["max_tokens"].GetNumberValue(), 1e-9)
	assert.InDelta(t, 0.5, req.Fields["top_p"].GetNumberValue(), 1e-9)
}
