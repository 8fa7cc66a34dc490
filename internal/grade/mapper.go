// Package grade turns similarity scores into discrete grades and aggregates
// per-question results into a grading record.
package grade

import "github.com/anandks/papergrader/internal/model"

// Similarity thresholds are frozen. The bucketing is deliberately coarse: a
// noisy similarity signal does not support finer precision, and there is no
// partial credit below the correctness floor.
const (
	thresholdExcellent = 0.90
	thresholdVeryGood  = 0.80
	thresholdGood      = 0.70
	thresholdPartial   = 0.60
)

// Map converts a raw similarity score into a discrete 0-10 score and a
// feedback tier. It is a pure, monotone step function, total over [0,1].
func Map(similarity float64) (int, model.FeedbackTier) {
	switch {
	case similarity >= thresholdExcellent:
		return 10, model.TierExcellent
	case similarity >= thresholdVeryGood:
		return 8, model.TierVeryGood
	case similarity >= thresholdGood:
		return 7, model.TierGood
	case similarity >= thresholdPartial:
		return 5, model.TierPartial
	default:
		return 0, model.TierIncorrect
	}
}
