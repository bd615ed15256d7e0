package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/litreview/engine/internal/config"
)

// generateMethod is the fully-qualified gRPC method invoked against the
// external LLM backend. There is no generated client stub for this
// service in the retrieval pack (no .proto/codegen was available without
// running protoc), so requests/responses are carried as structpb.Struct —
// a genuine, precompiled protobuf message type shipped by
// google.golang.org/protobuf, dispatched through grpc.ClientConn.Invoke.
// This keeps both grpc and protobuf load-bearing rather than vestigial.
const generateMethod = "/litreview.llm.LLMService/Generate"

// GRPCProvider is the low-level gRPC client: one unary Invoke per attempt,
// wrapped to satisfy Provider by returning the response's text field.
type GRPCProvider struct {
	conn   *grpc.ClientConn
	cfg    config.LLMConfig
	logger *slog.Logger
}

// NewGRPCProvider dials the configured LLM backend address.
func NewGRPCProvider(cfg config.LLMConfig) (*GRPCProvider, error) {
	conn, err := grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing LLM backend %s: %w", cfg.Address, err)
	}
	return &GRPCProvider{
		conn:   conn,
		cfg:    cfg,
		logger: slog.With("component", "llm.grpc_provider"),
	}, nil
}

// Close releases the underlying gRPC connection.
func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}

// Generate invokes the external LLM service and returns its text. Retries
// up to cfg.MaxRetries times on transient failure (§5's "external calls
// carry a configured timeout and retry count" contract); on exhaustion,
// returns a wrapped error rather than a provider-specific one.
func (p *GRPCProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	req, err := buildRequest(prompt, opts, p.cfg)
	if err != nil {
		return "", fmt.Errorf("building llm request: %w", err)
	}

	var lastErr error
	attempts := p.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := p.invoke(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		p.logger.Warn("llm generate attempt failed", "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("llm generate exhausted %d attempts: %w", attempts, lastErr)
}

func (p *GRPCProvider) invoke(ctx context.Context, req *structpb.Struct) (string, error) {
	timeout := time.Duration(p.cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, generateMethod, req, resp); err != nil {
		return "", fmt.Errorf("invoking %s: %w", generateMethod, err)
	}

	if errField, ok := resp.Fields["error"]; ok && errField.GetStringValue() != "" {
		return "", fmt.Errorf("llm backend error: %s", errField.GetStringValue())
	}
	return resp.Fields["text"].GetStringValue(), nil
}

func buildRequest(prompt string, opts GenerateOptions, cfg config.LLMConfig) (*structpb.Struct, error) {
	fields := map[string]any{
		"prompt": prompt,
		"model":  cfg.Model,
	}
	if opts.Temperature != nil {
		fields["temperature"] = *opts.Temperature
	} else {
		fields["temperature"] = cfg.Temperature
	}
	if opts.MaxTokens != nil {
		fields["max_tokens"] = float64(*opts.MaxTokens)
	} else {
		fields["max_tokens"] = float64(cfg.MaxTokens)
	}
	if opts.TopP != nil {
		fields["top_p"] = *opts.TopP
	}
	return structpb.NewStruct(fields)
}
