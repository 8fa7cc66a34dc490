package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anandks/papergrader/internal/segment"
)

// Run grades a batch of student submissions against one answer key.
//
// The submission cap is enforced before any OCR call. The key is processed
// once; submissions are then graded concurrently, bounded by the worker
// limit. Questions within one submission run sequentially. A failing
// submission never fails the batch.
func (r *Runner) Run(ctx context.Context, key Submission, students []Submission, subject, graderName string) (*BatchReport, error) {
	if len(students) == 0 {
		return nil, fmt.Errorf("at least one student submission is required")
	}
	if len(students) > r.maxBatch {
		return nil, fmt.Errorf("%w: %d submissions, limit is %d", ErrBatchLimit, len(students), r.maxBatch)
	}

	keyText, err := r.extractText(ctx, key, keyInstruction)
	if err != nil {
		return nil, fmt.Errorf("process answer key: %w", err)
	}
	if strings.TrimSpace(keyText) == "" {
		return nil, fmt.Errorf("answer key contains no text")
	}

	teacherAnswers := segment.Parse(keyText)
	slog.Info("answer key processed", "questions", teacherAnswers.Len())

	results := make([]SubmissionResult, len(students))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, sub := range students {
		i, sub := i, sub
		g.Go(func() error {
			results[i] = r.gradeOne(gctx, teacherAnswers, sub, subject, graderName)
			return nil
		})
	}
	// Workers report failures in their result slot and never return an error.
	_ = g.Wait()

	graded := 0
	for _, res := range results {
		if res.Err == nil {
			graded++
		}
	}
	slog.Info("batch complete", "subject", subject, "submissions", len(students), "graded", graded)

	return &BatchReport{Subject: subject, Submissions: results}, nil
}
