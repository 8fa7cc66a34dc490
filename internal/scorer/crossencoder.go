package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CrossEncoder scores (reference, candidate) pairs jointly against a
// TEI-compatible reranker server. The model attends to both texts at once,
// which is more accurate than comparing independent embeddings.
type CrossEncoder struct {
	baseURL string
	httpc   *http.Client
}

func newCrossEncoder(baseURL string, timeout time.Duration) *CrossEncoder {
	return &CrossEncoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score sends the pair to the reranker and returns its relevance score.
func (c *CrossEncoder) Score(ctx context.Context, reference, candidate string) (float64, error) {
	payload, err := json.Marshal(rerankRequest{Query: reference, Texts: []string{candidate}})
	if err != nil {
		return 0, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rerank call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("reranker %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("reranker returned no results")
	}
	return clamp(results[0].Score), nil
}

// Ping checks the reranker health endpoint.
func (c *CrossEncoder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("reranker health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reranker health check: status %d", resp.StatusCode)
	}
	return nil
}
