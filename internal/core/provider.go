package core

import "context"

// Provider defines the boundary to the upstream AI provider.
// Implementations must be safe for concurrent use.
type Provider interface {
	// ChatCompletion executes a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Embeddings executes an embeddings request
	Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
}
