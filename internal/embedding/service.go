// Package embedding provides vector embedding generation and similarity
// scoring over candidate sets.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"aigate/internal/core"
)

// Embedder is the provider capability the service needs.
type Embedder interface {
	Embeddings(ctx context.Context, req *core.EmbeddingRequest) (*core.EmbeddingResponse, error)
}

// Embedding is one generated vector with its approximate token count.
type Embedding struct {
	Vector []float64 `json:"vector"`
	Tokens int       `json:"tokens"`
}

// Candidate is an item to score against a query vector.
type Candidate struct {
	ID     string    `json:"id"`
	Vector []float64 `json:"vector"`
}

// Match is a scored candidate returned by FindSimilar.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Service generates embeddings through the provider boundary.
type Service struct {
	provider Embedder
	model    string
}

// NewService creates an embedding service using the given model.
func NewService(provider Embedder, model string) *Service {
	return &Service{provider: provider, model: model}
}

// Model returns the embedding model in use.
func (s *Service) Model() string {
	return s.model
}

// Embed generates an embedding for a single text.
func (s *Service) Embed(ctx context.Context, text string) (*Embedding, error) {
	results, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// EmbedBatch embeds all texts in a single provider call. The provider reports
// only a total token count, which is apportioned evenly across inputs: the
// per-item counts are an approximation, not exact measurements.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := s.provider.Embeddings(ctx, &core.EmbeddingRequest{
		Model: s.model,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, core.NewProviderError("", 0,
			"provider returned wrong number of embeddings", nil)
	}

	perItem := resp.Usage.TotalTokens / len(texts)
	remainder := resp.Usage.TotalTokens % len(texts)

	results := make([]Embedding, len(texts))
	for _, d := range resp.Data {
		// The index is provider-reported and untrusted.
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, core.NewProviderError("", 0,
				fmt.Sprintf("provider returned embedding index %d for %d inputs", d.Index, len(texts)), nil)
		}
		tokens := perItem
		if d.Index == 0 {
			tokens += remainder
		}
		results[d.Index] = Embedding{Vector: d.Embedding, Tokens: tokens}
	}
	return results, nil
}

// CosineSimilarity computes the standard dot-product-over-norms similarity.
// Vectors of unequal length are a programmer error, not a retryable condition.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, core.NewDimensionMismatchError(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// FindSimilar scores every candidate against the query and returns the top-K
// by descending similarity. This is a full O(n) scan with a final sort; no
// approximate-nearest-neighbor index is involved.
func FindSimilar(query []float64, candidates []Candidate, topK int) ([]Match, error) {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Vector)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{ID: c.ID, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
