// Package llm provides the LLMProvider external collaborator (§6):
// Generate(prompt, opts) -> string, with unsupported options dropped
// silently and no provider-specific error ever crossing the interface.
// Grounded on the teacher's pkg/llm.Client / pkg/agent.LLMClient split —
// a low-level unary gRPC client wrapped by a higher-level interface
// that returns one string per call, mirroring the teacher's
// generateExecutiveSummary usage of its own LLM client.
package llm

import "context"

// GenerateOptions carries optional generation parameters. A zero value
// requests provider defaults. Fields the backend does not support are
// dropped silently rather than erroring, per §6's interface contract.
type GenerateOptions struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Provider is the LLMProvider external collaborator.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
