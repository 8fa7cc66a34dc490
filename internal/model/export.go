package model

import "time"

// SubjectExport is the top-level JSON structure for a subject-wide export.
type SubjectExport struct {
	Subject    string          `json:"subject"`
	ExportedAt time.Time       `json:"exported_at"`
	Records    []SubjectRecord `json:"records"`
}

// SubjectRecord holds one stored grading result with its full breakdown.
type SubjectRecord struct {
	StudentName       string        `json:"student_name"`
	Subject           string        `json:"subject"`
	Summary           SummaryExport `json:"summary"`
	DetailedBreakdown []DetailedRow `json:"detailed_breakdown"`
	OverallFeedback   string        `json:"overall_feedback"`
	Timestamp         time.Time     `json:"timestamp"`
}

// SummaryExport is the summary block of one exported record.
type SummaryExport struct {
	TotalScore int     `json:"total_score"`
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`
}
