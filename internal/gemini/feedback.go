package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/anandks/papergrader/internal/model"
)

// SummaryRequest carries everything the feedback prompt needs about one
// graded submission.
type SummaryRequest struct {
	StudentName string
	Subject     string
	TotalScore  int
	MaxScore    int
	Results     []model.QuestionResult
}

// Summarize asks the model for a short overall feedback narrative addressed
// to the student. Callers substitute FeedbackPlaceholder on error; a failure
// here must never abort grading.
func (c *Client) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	prompt := buildSummaryPrompt(req)
	text, err := c.generate(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate overall feedback: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("feedback generation returned no text")
	}
	return text, nil
}

func buildSummaryPrompt(req SummaryRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an expert teacher. A student named ")
	sb.WriteString(req.StudentName)
	sb.WriteString(" has just completed an exam in ")
	sb.WriteString(req.Subject)
	sb.WriteString(".\n")
	fmt.Fprintf(&sb, "Their final score was %d out of %d.\n\n", req.TotalScore, req.MaxScore)

	sb.WriteString("Here is the question-by-question breakdown:\n")
	for _, r := range req.Results {
		fmt.Fprintf(&sb, "Question %s: %s (%s)\n", r.Question, r.ScoreString(), r.Feedback)
	}

	sb.WriteString("\nPlease provide a brief, overall feedback summary for the student (no more than 3-4 sentences).\n")
	sb.WriteString("Focus on their strengths and one or two key areas for improvement.\n")
	sb.WriteString("Be encouraging and constructive. Address the student directly as 'you'.\n")

	return sb.String()
}
