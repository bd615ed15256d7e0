package embedding

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// embedMethod is the external embedding backend's gRPC method. As with
// internal/llm, requests/responses are carried as structpb.Struct — a
// real precompiled protobuf message — since no generated client stub
// exists for this service in the retrieval pack.
const embedMethod = "/litreview.embedding.EmbeddingService/Embed"

// GRPCEmbedder dials an external embedding backend.
type GRPCEmbedder struct {
	conn *grpc.ClientConn
	dim  int
}

// NewGRPCEmbedder dials addr; dim is the backend's fixed vector dimension.
func NewGRPCEmbedder(addr string, dim int) (*GRPCEmbedder, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing embedding backend %s: %w", addr, err)
	}
	return &GRPCEmbedder{conn: conn, dim: dim}, nil
}

// Close releases the underlying gRPC connection.
func (e *GRPCEmbedder) Close() error {
	return e.conn.Close()
}

// Dimension reports the backend's fixed vector length.
func (e *GRPCEmbedder) Dimension() int {
	return e.dim
}

// Embed sends texts to the backend and returns L2-normalized vectors, one
// per input text, in order.
func (e *GRPCEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	values := make([]any, len(texts))
	for i, t := range texts {
		values[i] = t
	}
	req, err := structpb.NewStruct(map[string]any{"texts": values})
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := e.conn.Invoke(ctx, embedMethod, req, resp); err != nil {
		return nil, fmt.Errorf("invoking %s: %w", embedMethod, err)
	}

	vectorsField, ok := resp.Fields["vectors"]
	if !ok {
		return nil, fmt.Errorf("embed response missing vectors field")
	}
	rows := vectorsField.GetListValue().GetValues()
	out := make([][]float64, len(rows))
	for i, row := range rows {
		cols := row.GetListValue().GetValues()
		vec := make([]float64, len(cols))
		for j, c := range cols {
			vec[j] = c.GetNumberValue()
		}
		out[i] = Normalize(vec)
	}
	return out, nil
}
