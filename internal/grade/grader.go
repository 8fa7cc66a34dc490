package grade

import (
	"context"
	"log/slog"

	"github.com/anandks/papergrader/internal/model"
	"github.com/anandks/papergrader/internal/scorer"
)

// MaxPointsPerQuestion is the fixed per-question scale.
const MaxPointsPerQuestion = 10

// Grader aligns a student's answers against the teacher's key and scores
// each pair. The scorer is injected once at construction and shared across
// all grading runs.
type Grader struct {
	scorer scorer.Scorer
}

// New creates a Grader backed by the given scorer.
func New(s scorer.Scorer) *Grader {
	return &Grader{scorer: s}
}

// Grade pairs teacher question identifiers with student answers and scores
// each pair. Alignment is by identifier equality, never by position: teacher
// IDs are walked in map order, and an ID missing from the student map gets
// the NoAnswerFound sentinel and a forced zero without a scorer call.
// Student-only identifiers are ignored; the teacher's key defines the
// question set, so max is always 10 x len(teacher).
//
// A scorer failure downgrades that single question to similarity 0 with the
// ScoreError tag and the run continues.
func (g *Grader) Grade(ctx context.Context, teacher, student *model.AnswerMap) ([]model.QuestionResult, int, int) {
	var results []model.QuestionResult
	total := 0
	max := 0

	for _, id := range teacher.IDs() {
		teacherAnswer, _ := teacher.Get(id)

		studentAnswer, found := student.Get(id)
		if !found {
			studentAnswer = model.NoAnswerFound
		}

		var similarity float64
		var scoreErr bool
		if studentAnswer == model.NoAnswerFound {
			similarity = 0
		} else {
			s, err := g.scorer.Score(ctx, teacherAnswer, studentAnswer)
			if err != nil {
				slog.Warn("scoring failed, question downgraded to zero", "question", id, "error", err)
				similarity = 0
				scoreErr = true
			} else {
				similarity = s
			}
		}

		score, tier := Map(similarity)
		results = append(results, model.QuestionResult{
			Question:      id,
			TeacherAnswer: teacherAnswer,
			StudentAnswer: studentAnswer,
			Similarity:    similarity,
			Score:         score,
			Tier:          tier,
			Feedback:      tier.Feedback(),
			ScoreError:    scoreErr,
		})

		total += score
		max += MaxPointsPerQuestion
	}

	return results, total, max
}
