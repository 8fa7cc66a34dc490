package grade

import (
	"math"
	"time"

	"github.com/anandks/papergrader/internal/model"
)

// Summarize derives the summary statistics from a result list. Percentage is
// rounded to two decimals and is 0 when there are no teacher questions.
func Summarize(results []model.QuestionResult) model.GradingSummary {
	total := 0
	for _, r := range results {
		total += r.Score
	}
	max := MaxPointsPerQuestion * len(results)

	var percentage float64
	if max > 0 {
		percentage = math.Round(float64(total)/float64(max)*100*100) / 100
	}

	return model.GradingSummary{
		TotalScore: total,
		MaxScore:   max,
		Percentage: percentage,
	}
}

// NewRecord packages one submission's results into an immutable grading
// record, stamped with the current time.
func NewRecord(studentName, subject, graderName string, results []model.QuestionResult, summary model.GradingSummary) model.GradingRecord {
	return model.GradingRecord{
		StudentName: studentName,
		Subject:     subject,
		GraderName:  graderName,
		Results:     results,
		Summary:     summary,
		CreatedAt:   time.Now(),
	}
}
