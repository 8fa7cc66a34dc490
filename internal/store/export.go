package store

import (
	"fmt"
	"time"

	"github.com/anandks/papergrader/internal/model"
)

// ExportSubject collects every stored result for one subject into an
// export document, including per-question breakdowns.
func (s *Store) ExportSubject(subject string) (*model.SubjectExport, error) {
	rows, err := s.ResultsForSubject(subject)
	if err != nil {
		return nil, fmt.Errorf("query results for subject %s: %w", subject, err)
	}

	export := &model.SubjectExport{
		Subject:    subject,
		ExportedAt: time.Now(),
		Records:    []model.SubjectRecord{},
	}

	for _, row := range rows {
		breakdown, err := s.DetailedResult(row.ID)
		if err != nil {
			return nil, fmt.Errorf("query breakdown for result %d: %w", row.ID, err)
		}
		export.Records = append(export.Records, model.SubjectRecord{
			StudentName: row.StudentName,
			Subject:     row.Subject,
			Summary: model.SummaryExport{
				TotalScore: row.TotalScore,
				MaxScore:   row.MaxScore,
				Percentage: row.Percentage,
			},
			DetailedBreakdown: breakdown,
			OverallFeedback:   row.OverallFeedback,
			Timestamp:         row.Timestamp,
		})
	}

	return export, nil
}
