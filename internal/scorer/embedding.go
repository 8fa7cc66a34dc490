package scorer

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Embedding embeds reference and candidate independently through an
// OpenAI-compatible embeddings endpoint and scores them by cosine similarity.
// Cheaper than the cross-encoder but less accurate, since each text is
// compressed into a fixed-size vector before comparison.
type Embedding struct {
	api   *openai.Client
	model string
}

func newEmbedding(baseURL, apiKey, modelName string, timeout time.Duration) *Embedding {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &Embedding{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Score embeds both texts in one request and returns their cosine similarity,
// clamped to [0,1]. Empty texts score 0 without calling the endpoint.
func (e *Embedding) Score(ctx context.Context, reference, candidate string) (float64, error) {
	if strings.TrimSpace(reference) == "" || strings.TrimSpace(candidate) == "" {
		return 0, nil
	}

	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{reference, candidate},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return 0, fmt.Errorf("embeddings call: %w", err)
	}
	if len(resp.Data) < 2 {
		return 0, fmt.Errorf("embeddings call returned %d vectors, want 2", len(resp.Data))
	}

	sim, err := cosine(resp.Data[0].Embedding, resp.Data[1].Embedding)
	if err != nil {
		return 0, err
	}
	return clamp(sim), nil
}

// Ping verifies the endpoint by embedding a trivial input.
func (e *Embedding) Ping(ctx context.Context) error {
	_, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{"ping"},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return fmt.Errorf("embeddings health check: %w", err)
	}
	return nil
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("cosine: vector lengths %d and %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
