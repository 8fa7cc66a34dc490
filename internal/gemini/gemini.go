// Package gemini wraps the Gemini API for the two external collaborators the
// grading core depends on: page transcription (OCR) and overall narrative
// feedback.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/anandks/papergrader/internal/input"
)

// FeedbackPlaceholder replaces the narrative when feedback generation fails.
// Feedback is best-effort and never aborts grading.
const FeedbackPlaceholder = "Could not generate AI feedback."

const (
	maxAttempts  = 3
	retryBackoff = 300 * time.Millisecond
)

// Client holds one shared connection to the Gemini API. It is constructed
// once at process start and passed to every grading run; inference calls are
// safe for concurrent use.
type Client struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// New dials the Gemini API. The API key is required; the model name defaults
// to a current flash model when empty.
func New(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is empty")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	m := cl.GenerativeModel(modelName)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0),
	}

	return &Client{client: cl, model: m, timeout: timeout}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Transcribe extracts text from the given pages with the supplied
// instruction ("Extract all typed text." for keys, "Transcribe all
// handwritten text." for scripts). Line breaks and numbering tokens are part
// of the instruction contract so downstream segmentation can fire.
func (c *Client) Transcribe(ctx context.Context, pages []input.Page, instruction string) (string, error) {
	if len(pages) == 0 {
		return "", fmt.Errorf("no pages to transcribe")
	}

	parts := make([]genai.Part, 0, len(pages)+1)
	parts = append(parts, genai.Text(instruction+" Preserve line breaks and question numbering exactly as written."))
	for _, p := range pages {
		parts = append(parts, &genai.Blob{MIMEType: p.MIME, Data: p.Data})
	}

	text, err := c.generate(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("transcribe pages: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("transcription returned no text")
	}
	return text, nil
}

// generate runs one GenerateContent call with a bounded timeout, retrying
// transient failures.
func (c *Client) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.model.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			slog.Debug("gemini call failed", "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
			continue
		}
		return firstText(resp), nil
	}
	return "", lastErr
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func ptrFloat32(v float32) *float32 { return &v }
