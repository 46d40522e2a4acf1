package embedding

import (
	"context"
	"math"
	"testing"

	"aigate/internal/core"
)

// fakeEmbedder returns unit-length axis vectors and a fixed token count.
type fakeEmbedder struct {
	calls     int
	lastInput []string
	tokens    int
}

func (f *fakeEmbedder) Embeddings(_ context.Context, req *core.EmbeddingRequest) (*core.EmbeddingResponse, error) {
	f.calls++
	f.lastInput = req.Input

	data := make([]core.EmbeddingData, len(req.Input))
	for i := range req.Input {
		vec := make([]float64, 3)
		vec[i%3] = 1
		data[i] = core.EmbeddingData{Index: i, Embedding: vec}
	}
	return &core.EmbeddingResponse{
		Data:  data,
		Model: req.Model,
		Usage: core.EmbeddingUsage{TotalTokens: f.tokens},
	}, nil
}

func TestEmbedBatchSingleCall(t *testing.T) {
	f := &fakeEmbedder{tokens: 10}
	svc := NewService(f, "text-embedding-3-small")

	results, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.calls != 1 {
		t.Errorf("batch must issue exactly one provider call, got %d", f.calls)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(results))
	}

	// 10 tokens over 3 inputs: 4 + 3 + 3, totals preserved.
	total := 0
	for _, r := range results {
		total += r.Tokens
	}
	if total != 10 {
		t.Errorf("apportioned tokens should sum to the reported total, got %d", total)
	}
	if results[0].Tokens != 4 || results[1].Tokens != 3 {
		t.Errorf("expected even apportioning with remainder first, got %d/%d/%d",
			results[0].Tokens, results[1].Tokens, results[2].Tokens)
	}
}

// badIndexEmbedder reports an embedding index outside the input range.
type badIndexEmbedder struct{}

func (badIndexEmbedder) Embeddings(_ context.Context, req *core.EmbeddingRequest) (*core.EmbeddingResponse, error) {
	data := make([]core.EmbeddingData, len(req.Input))
	for i := range req.Input {
		data[i] = core.EmbeddingData{Index: i + len(req.Input), Embedding: []float64{1, 0, 0}}
	}
	return &core.EmbeddingResponse{
		Data:  data,
		Model: req.Model,
		Usage: core.EmbeddingUsage{TotalTokens: 4},
	}, nil
}

func TestEmbedBatchRejectsOutOfRangeIndex(t *testing.T) {
	svc := NewService(badIndexEmbedder{}, "text-embedding-3-small")

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for out-of-range embedding index")
	}
	ge, ok := err.(*core.GatewayError)
	if !ok || ge.Type != core.ErrorTypeProvider {
		t.Errorf("expected provider_error, got %v", err)
	}
}

func TestEmbedSingle(t *testing.T) {
	f := &fakeEmbedder{tokens: 7}
	svc := NewService(f, "text-embedding-3-small")

	emb, err := svc.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.Tokens != 7 {
		t.Errorf("expected 7 tokens, got %d", emb.Tokens)
	}
	if len(emb.Vector) != 3 {
		t.Errorf("expected 3-dim vector, got %d", len(emb.Vector))
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("SelfSimilarityIsOne", func(t *testing.T) {
		v := []float64{0.3, -1.2, 4.5}
		score, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(score-1.0) > 1e-9 {
			t.Errorf("cos(v, v) should be 1.0, got %f", score)
		}
	})

	t.Run("Orthogonal", func(t *testing.T) {
		score, err := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(score) > 1e-9 {
			t.Errorf("orthogonal vectors should score 0, got %f", score)
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
		if err == nil {
			t.Fatal("expected dimension mismatch error")
		}
		ge, ok := err.(*core.GatewayError)
		if !ok || ge.Type != core.ErrorTypeDimensionMismatch {
			t.Errorf("expected dimension_mismatch, got %v", err)
		}
	})

	t.Run("ZeroVector", func(t *testing.T) {
		score, err := CosineSimilarity([]float64{0, 0}, []float64{1, 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score != 0 {
			t.Errorf("zero vector should score 0, got %f", score)
		}
	})
}

func TestFindSimilar(t *testing.T) {
	query := []float64{1, 0, 0}
	candidates := []Candidate{
		{ID: "far", Vector: []float64{0, 1, 0}},
		{ID: "near", Vector: []float64{1, 0.1, 0}},
		{ID: "exact", Vector: []float64{2, 0, 0}},
		{ID: "opposite", Vector: []float64{-1, 0, 0}},
	}

	matches, err := FindSimilar(query, candidates, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected topK=3 matches, got %d", len(matches))
	}

	wantOrder := []string{"exact", "near", "far"}
	for i, want := range wantOrder {
		if matches[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, matches[i].ID)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Error("matches must be sorted by descending similarity")
		}
	}
}

func TestFindSimilarMismatchedCandidate(t *testing.T) {
	_, err := FindSimilar([]float64{1, 0}, []Candidate{{ID: "bad", Vector: []float64{1}}}, 5)
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
