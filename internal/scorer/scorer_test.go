package scorer

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"cross-encoder", Config{Backend: BackendCrossEncoder, RerankURL: "http://localhost:8081"}, false},
		{"default is cross-encoder", Config{RerankURL: "http://localhost:8081"}, false},
		{"cross-encoder missing url", Config{Backend: BackendCrossEncoder}, true},
		{"embedding", Config{Backend: BackendEmbedding, EmbedURL: "http://localhost:11434/v1", EmbedModel: "nomic-embed-text"}, false},
		{"embedding missing url", Config{Backend: BackendEmbedding}, true},
		{"unknown backend", Config{Backend: "tfidf"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if s == nil {
				t.Fatal("New returned nil scorer")
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.3, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		if got := clamp(tt.in); got != tt.want {
			t.Errorf("clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("cosine: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineLengthMismatch(t *testing.T) {
	if _, err := cosine([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("expected error for mismatched vector lengths")
	}
	if _, err := cosine(nil, nil); err == nil {
		t.Error("expected error for empty vectors")
	}
}

func TestCrossEncoderScore(t *testing.T) {
	var gotReq rerankRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 0.93}})
	}))
	defer ts.Close()

	ce := newCrossEncoder(ts.URL, 5*time.Second)
	got, err := ce.Score(context.Background(), "Paris is the capital of France", "The capital of France is Paris")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 0.93 {
		t.Errorf("Score = %v, want 0.93", got)
	}
	if gotReq.Query != "Paris is the capital of France" {
		t.Errorf("reranker query = %q", gotReq.Query)
	}
	if len(gotReq.Texts) != 1 || gotReq.Texts[0] != "The capital of France is Paris" {
		t.Errorf("reranker texts = %v", gotReq.Texts)
	}
}

func TestCrossEncoderScoreClamped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1.04}})
	}))
	defer ts.Close()

	ce := newCrossEncoder(ts.URL, 5*time.Second)
	got, err := ce.Score(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 1 {
		t.Errorf("Score = %v, want clamped 1", got)
	}
}

func TestCrossEncoderServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ce := newCrossEncoder(ts.URL, 5*time.Second)
	if _, err := ce.Score(context.Background(), "a", "b"); err == nil {
		t.Error("expected error from failing reranker")
	}
}

func TestCrossEncoderPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	ce := newCrossEncoder(ts.URL, 5*time.Second)
	if err := ce.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	ce = newCrossEncoder(ts.URL+"/missing", 5*time.Second)
	if err := ce.Ping(context.Background()); err == nil {
		t.Error("expected Ping failure for bad path")
	}
}

func TestEmbeddingScore(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two identical vectors: cosine similarity 1.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 0, "embedding": [0.5, 0.5, 0.1]},
				{"object": "embedding", "index": 1, "embedding": [0.5, 0.5, 0.1]}
			],
			"model": "nomic-embed-text"
		}`))
	}))
	defer ts.Close()

	e := newEmbedding(ts.URL, "test", "nomic-embed-text", 5*time.Second)
	got, err := e.Score(context.Background(), "reference answer", "candidate answer")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(got-1) > 1e-6 {
		t.Errorf("Score = %v, want 1", got)
	}
}

func TestEmbeddingScoreEmptyText(t *testing.T) {
	// Empty texts must short-circuit to 0 without touching the endpoint.
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	e := newEmbedding(ts.URL, "test", "nomic-embed-text", 5*time.Second)
	got, err := e.Score(context.Background(), "", "candidate")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 0 {
		t.Errorf("Score = %v, want 0", got)
	}
	if called {
		t.Error("endpoint must not be called for empty text")
	}
}

func TestEmbeddingScoreTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": [
			{"object": "embedding", "index": 0, "embedding": [1]},
			{"object": "embedding", "index": 1, "embedding": [1]}
		]}`))
	}))
	defer ts.Close()

	s, err := New(Config{
		Backend:    BackendEmbedding,
		EmbedURL:   ts.URL,
		EmbedModel: "nomic-embed-text",
		Timeout:    50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	_, err = s.Score(context.Background(), "a", "b")
	if err == nil {
		t.Fatal("expected timeout error from slow embeddings endpoint")
	}
	if elapsed := time.Since(start); elapsed >= 500*time.Millisecond {
		t.Errorf("Score took %v, configured timeout not applied", elapsed)
	}
}
