package model

import (
	"context"
	"fmt"
	"time"
)

// NoAnswerFound is the sentinel substituted for a student answer when the
// teacher's question identifier is absent from the student's script.
// Answers equal to this value are never sent to the scoring backend.
const NoAnswerFound = "No answer found."

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user. Teachers carry the subject they grade for;
// students match results by their username.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Subject      string
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// AnswerMap maps question identifiers to answer texts. Identifiers are
// numeric but compared as text ("1", "2", "10"). Iteration order is the
// order in which identifiers were first added, which for segmented text is
// their order of appearance in the source.
type AnswerMap struct {
	ids     []string
	answers map[string]string
}

// NewAnswerMap returns an empty AnswerMap.
func NewAnswerMap() *AnswerMap {
	return &AnswerMap{answers: make(map[string]string)}
}

// Set stores the answer text for an identifier. A repeated identifier keeps
// its original position but takes the new text.
func (m *AnswerMap) Set(id, text string) {
	if _, ok := m.answers[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.answers[id] = text
}

// Get returns the answer text for an identifier.
func (m *AnswerMap) Get(id string) (string, bool) {
	text, ok := m.answers[id]
	return text, ok
}

// IDs returns the identifiers in insertion order.
func (m *AnswerMap) IDs() []string {
	return m.ids
}

// Len returns the number of answers.
func (m *AnswerMap) Len() int {
	return len(m.ids)
}

// FeedbackTier labels the quality bucket a similarity score falls into.
type FeedbackTier string

const (
	TierExcellent FeedbackTier = "excellent"
	TierVeryGood  FeedbackTier = "very_good"
	TierGood      FeedbackTier = "good"
	TierPartial   FeedbackTier = "partial"
	TierIncorrect FeedbackTier = "incorrect"
)

// Feedback returns the canonical per-question feedback sentence for the tier.
// These strings are persisted with the record, so they stay fixed English
// regardless of the UI language.
func (t FeedbackTier) Feedback() string {
	switch t {
	case TierExcellent:
		return "Excellent. The answer is correct and complete."
	case TierVeryGood:
		return "Very Good. The answer captures all main points."
	case TierGood:
		return "Good. The answer captures the main points, but lacks some detail."
	case TierPartial:
		return "Partial. The answer is missing key concepts."
	default:
		return "Incorrect. The answer does not match the key."
	}
}

// QuestionResult is one graded question. Score is always the deterministic
// image of Similarity under the threshold table; Similarity is retained for
// audit even though only Score is displayed.
type QuestionResult struct {
	Question      string       `json:"question"`
	TeacherAnswer string       `json:"teacher_answer"`
	StudentAnswer string       `json:"student_answer"`
	Similarity    float64      `json:"similarity"`
	Score         int          `json:"score"`
	Tier          FeedbackTier `json:"feedback_tier"`
	Feedback      string       `json:"feedback"`
	ScoreError    bool         `json:"score_error,omitempty"`
}

// ScoreString renders the score in the "N/10" display form.
func (r QuestionResult) ScoreString() string {
	return fmt.Sprintf("%d/10", r.Score)
}

// GradingSummary aggregates a list of QuestionResults. Derived entirely from
// the results; never mutated independently.
type GradingSummary struct {
	TotalScore      int     `json:"total_score"`
	MaxScore        int     `json:"max_score"`
	Percentage      float64 `json:"percentage"`
	OverallFeedback string  `json:"overall_feedback"`
}

// GradingRecord is the complete output of grading one submission. The store
// assigns the persistent ID on save.
type GradingRecord struct {
	StudentName string           `json:"student_name"`
	Subject     string           `json:"subject"`
	GraderName  string           `json:"grader_id"`
	Results     []QuestionResult `json:"detailed_breakdown"`
	Summary     GradingSummary   `json:"summary"`
	CreatedAt   time.Time        `json:"timestamp"`
}

// ResultRow is a stored summary row as read back from the database.
type ResultRow struct {
	ID              int64     `json:"id"`
	StudentName     string    `json:"student_name"`
	Subject         string    `json:"subject"`
	GraderName      string    `json:"grader_id"`
	TotalScore      int       `json:"total_score"`
	MaxScore        int       `json:"max_score"`
	Percentage      float64   `json:"percentage"`
	OverallFeedback string    `json:"overall_feedback"`
	Timestamp       time.Time `json:"timestamp"`
}

// DetailedRow is a stored per-question row as read back from the database.
// Score carries the persisted "N/10" display string.
type DetailedRow struct {
	Question      string  `json:"question"`
	TeacherAnswer string  `json:"teacher_answer"`
	StudentAnswer string  `json:"student_answer"`
	Similarity    float64 `json:"similarity"`
	Score         string  `json:"score"`
	Feedback      string  `json:"feedback"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Lang          string
	MaxBatch      int // maximum student submissions per grading run
	Workers       int // concurrent submissions during a batch
	SecureCookies bool
}
