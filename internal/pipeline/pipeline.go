// Package pipeline runs the full grading flow for a batch of student
// submissions against one answer key: input detection, transcription,
// segmentation, scoring, feedback and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/anandks/papergrader/internal/gemini"
	"github.com/anandks/papergrader/internal/grade"
	"github.com/anandks/papergrader/internal/input"
	"github.com/anandks/papergrader/internal/model"
	"github.com/anandks/papergrader/internal/segment"
)

// OCR instructions. The key is typed; student scripts are handwritten.
const (
	keyInstruction    = "Extract all typed text."
	scriptInstruction = "Transcribe all handwritten text."
)

// DefaultMaxBatch is the per-run cap on student submissions. A policy limit,
// not a technical one.
const DefaultMaxBatch = 30

// ErrBatchLimit is returned when a grading run exceeds the submission cap.
// The whole request is rejected before any per-submission work starts.
var ErrBatchLimit = errors.New("batch limit exceeded")

// Transcriber turns page blobs into text. OCR failure makes the one
// submission ungradable; the batch continues.
type Transcriber interface {
	Transcribe(ctx context.Context, pages []input.Page, instruction string) (string, error)
}

// Summarizer produces the overall feedback narrative. Best-effort.
type Summarizer interface {
	Summarize(ctx context.Context, req gemini.SummaryRequest) (string, error)
}

// RecordStore persists grading records.
type RecordStore interface {
	SaveRecord(rec model.GradingRecord) (int64, error)
}

// Submission is one uploaded file.
type Submission struct {
	Filename string
	Data     []byte
}

// StudentName derives the student's name from the filename, like the upload
// form does.
func (s Submission) StudentName() string {
	base := filepath.Base(s.Filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SubmissionResult is the outcome for one student. When Err is set the
// submission could not be graded. SaveErr reports a persistence failure; the
// in-memory Record is still valid and the save may be retried.
type SubmissionResult struct {
	StudentName string
	Record      *model.GradingRecord
	ResultID    int64
	Err         error
	SaveErr     error
}

// BatchReport is the ordered outcome of one grading run, one entry per
// student submission in input order.
type BatchReport struct {
	Subject     string
	Submissions []SubmissionResult
}

// Runner wires the grading pipeline together. Construct one per process; the
// scorer and collaborator clients it holds are loaded once and shared.
type Runner struct {
	grader   *grade.Grader
	ocr      Transcriber
	feedback Summarizer
	store    RecordStore
	maxBatch int
	workers  int
}

// NewRunner creates a Runner. feedback and store may be nil (placeholder
// feedback, no persistence); ocr may be nil only if every input is a DOCX.
func NewRunner(g *grade.Grader, ocr Transcriber, feedback Summarizer, store RecordStore, maxBatch, workers int) *Runner {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		grader:   g,
		ocr:      ocr,
		feedback: feedback,
		store:    store,
		maxBatch: maxBatch,
		workers:  workers,
	}
}

// extractText converts a submission into raw text, transcribing page blobs
// through the OCR collaborator when needed.
func (r *Runner) extractText(ctx context.Context, sub Submission, instruction string) (string, error) {
	processed, err := input.Process(sub.Filename, sub.Data)
	if err != nil {
		return "", err
	}

	switch processed.Kind {
	case input.KindText:
		return processed.Text, nil
	case input.KindPages:
		if r.ocr == nil {
			return "", fmt.Errorf("no OCR transcriber configured for %s", sub.Filename)
		}
		return r.ocr.Transcribe(ctx, processed.Pages, instruction)
	default:
		return "", fmt.Errorf("unhandled input kind %d", processed.Kind)
	}
}

// gradeOne runs the sequential per-submission pipeline: transcribe, segment,
// grade, summarize, persist.
func (r *Runner) gradeOne(ctx context.Context, teacherAnswers *model.AnswerMap, sub Submission, subject, graderName string) SubmissionResult {
	name := sub.StudentName()
	res := SubmissionResult{StudentName: name}

	text, err := r.extractText(ctx, sub, scriptInstruction)
	if err != nil {
		res.Err = fmt.Errorf("transcribe script: %w", err)
		return res
	}
	if strings.TrimSpace(text) == "" {
		res.Err = fmt.Errorf("script contains no text")
		return res
	}

	studentAnswers := segment.Parse(text)
	results, total, max := r.grader.Grade(ctx, teacherAnswers, studentAnswers)

	summary := grade.Summarize(results)
	summary.OverallFeedback = r.overallFeedback(ctx, gemini.SummaryRequest{
		StudentName: name,
		Subject:     subject,
		TotalScore:  total,
		MaxScore:    max,
		Results:     results,
	})

	record := grade.NewRecord(name, subject, graderName, results, summary)
	res.Record = &record

	if r.store != nil {
		id, err := r.store.SaveRecord(record)
		if err != nil {
			// The computed record survives; the caller may retry the save.
			slog.Error("failed to save grading record", "student", name, "error", err)
			res.SaveErr = err
		} else {
			res.ResultID = id
		}
	}

	slog.Info("graded submission",
		"student", name,
		"subject", subject,
		"total", summary.TotalScore,
		"max", summary.MaxScore,
		"percentage", summary.Percentage,
	)
	return res
}

func (r *Runner) overallFeedback(ctx context.Context, req gemini.SummaryRequest) string {
	if r.feedback == nil {
		return gemini.FeedbackPlaceholder
	}
	text, err := r.feedback.Summarize(ctx, req)
	if err != nil {
		slog.Warn("feedback generation failed, using placeholder", "student", req.StudentName, "error", err)
		return gemini.FeedbackPlaceholder
	}
	return text
}
