// Package scorer computes normalized semantic-closeness scores between a
// reference answer and a candidate answer.
package scorer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Scorer computes a similarity score in [0,1] for a (reference, candidate)
// answer pair. Implementations must be safe for concurrent use: one scorer is
// constructed per process and shared across all grading requests.
type Scorer interface {
	Score(ctx context.Context, reference, candidate string) (float64, error)
	Ping(ctx context.Context) error
}

// Backend names accepted by New.
const (
	BackendCrossEncoder = "cross-encoder"
	BackendEmbedding    = "embedding"
)

// Config selects and configures a scoring backend.
type Config struct {
	Backend string // cross-encoder or embedding

	// Cross-encoder backend: base URL of a TEI-style reranker.
	RerankURL string

	// Embedding backend: OpenAI-compatible endpoint.
	EmbedURL   string
	EmbedKey   string
	EmbedModel string

	Timeout time.Duration
}

// New builds the scorer selected by cfg.Backend. The cross-encoder backend
// scores the pair jointly and is preferred; the embedding backend embeds both
// texts independently and falls back to cosine similarity.
func New(cfg Config) (Scorer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendCrossEncoder, "":
		if cfg.RerankURL == "" {
			return nil, fmt.Errorf("cross-encoder backend requires a reranker URL")
		}
		return newCrossEncoder(cfg.RerankURL, cfg.Timeout), nil
	case BackendEmbedding:
		if cfg.EmbedURL == "" {
			return nil, fmt.Errorf("embedding backend requires an endpoint URL")
		}
		return newEmbedding(cfg.EmbedURL, cfg.EmbedKey, cfg.EmbedModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown scorer backend %q", cfg.Backend)
	}
}

// clamp floors and caps a similarity score to [0,1] so downstream
// thresholding stays total.
func clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
