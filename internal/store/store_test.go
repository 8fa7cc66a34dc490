package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/anandks/papergrader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(student, subject string, total int, at time.Time) model.GradingRecord {
	return model.GradingRecord{
		StudentName: student,
		Subject:     subject,
		GraderName:  "mr_smith",
		Results: []model.QuestionResult{
			{
				Question:      "1",
				TeacherAnswer: "Paris",
				StudentAnswer: "Paris",
				Similarity:    0.95,
				Score:         10,
				Tier:          model.TierExcellent,
				Feedback:      model.TierExcellent.Feedback(),
			},
			{
				Question:      "2",
				TeacherAnswer: "Berlin",
				StudentAnswer: model.NoAnswerFound,
				Similarity:    0,
				Score:         0,
				Tier:          model.TierIncorrect,
				Feedback:      model.TierIncorrect.Feedback(),
			},
		},
		Summary: model.GradingSummary{
			TotalScore:      total,
			MaxScore:        20,
			Percentage:      float64(total) / 20 * 100,
			OverallFeedback: "Keep it up, " + student + ".",
		},
		CreatedAt: at,
	}
}

func saveTestRecord(t *testing.T, s *Store, student, subject string, total int, at time.Time) int64 {
	t.Helper()
	id, err := s.SaveRecord(testRecord(student, subject, total, at))
	if err != nil {
		t.Fatalf("saveTestRecord: %v", err)
	}
	return id
}

func TestSaveRecordRoundtrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	id := saveTestRecord(t, s, "alice", "Geography", 10, now)

	row, err := s.GetResult(id)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if row.StudentName != "alice" {
		t.Errorf("expected student alice, got %q", row.StudentName)
	}
	if row.Subject != "Geography" {
		t.Errorf("expected subject Geography, got %q", row.Subject)
	}
	if row.GraderName != "mr_smith" {
		t.Errorf("expected grader mr_smith, got %q", row.GraderName)
	}
	if row.TotalScore != 10 || row.MaxScore != 20 {
		t.Errorf("expected 10/20, got %d/%d", row.TotalScore, row.MaxScore)
	}
	if row.Percentage != 50 {
		t.Errorf("expected 50%%, got %f", row.Percentage)
	}
	if row.OverallFeedback != "Keep it up, alice." {
		t.Errorf("unexpected feedback: %q", row.OverallFeedback)
	}

	breakdown, err := s.DetailedResult(id)
	if err != nil {
		t.Fatalf("DetailedResult: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("expected 2 breakdown rows, got %d", len(breakdown))
	}
	if breakdown[0].Question != "1" || breakdown[0].Score != "10/10" {
		t.Errorf("unexpected first row: %+v", breakdown[0])
	}
	if breakdown[1].StudentAnswer != model.NoAnswerFound {
		t.Errorf("expected sentinel answer, got %q", breakdown[1].StudentAnswer)
	}
	if breakdown[1].Score != "0/10" {
		t.Errorf("expected 0/10, got %q", breakdown[1].Score)
	}
}

func TestGetResultNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetResult(9999)
	if err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestResultsForStudent(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Truncate(time.Second)
	saveTestRecord(t, s, "alice", "Geography", 10, base.Add(-2*time.Hour))
	saveTestRecord(t, s, "alice", "History", 20, base)
	saveTestRecord(t, s, "bob", "Geography", 0, base)

	rows, err := s.ResultsForStudent("alice")
	if err != nil {
		t.Fatalf("ResultsForStudent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Most recent first.
	if rows[0].Subject != "History" {
		t.Errorf("expected newest result first, got %q", rows[0].Subject)
	}

	rows, err = s.ResultsForStudent("nobody")
	if err != nil {
		t.Fatalf("ResultsForStudent: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestResultsForSubject(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Truncate(time.Second)
	saveTestRecord(t, s, "carol", "Geography", 20, base.Add(-time.Hour))
	saveTestRecord(t, s, "alice", "Geography", 10, base)
	saveTestRecord(t, s, "alice", "History", 20, base)

	rows, err := s.ResultsForSubject("Geography")
	if err != nil {
		t.Fatalf("ResultsForSubject: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Grouped by student name.
	if rows[0].StudentName != "alice" || rows[1].StudentName != "carol" {
		t.Errorf("expected alice then carol, got %q then %q", rows[0].StudentName, rows[1].StudentName)
	}
}

func TestExportSubject(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Truncate(time.Second)
	saveTestRecord(t, s, "alice", "Geography", 10, base)
	saveTestRecord(t, s, "bob", "Geography", 20, base)
	saveTestRecord(t, s, "alice", "History", 20, base)

	export, err := s.ExportSubject("Geography")
	if err != nil {
		t.Fatalf("ExportSubject: %v", err)
	}
	if export.Subject != "Geography" {
		t.Errorf("expected subject Geography, got %q", export.Subject)
	}
	if len(export.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(export.Records))
	}
	rec := export.Records[0]
	if rec.StudentName != "alice" {
		t.Errorf("expected alice first, got %q", rec.StudentName)
	}
	if rec.Summary.TotalScore != 10 || rec.Summary.MaxScore != 20 {
		t.Errorf("unexpected summary: %+v", rec.Summary)
	}
	if len(rec.DetailedBreakdown) != 2 {
		t.Errorf("expected 2 breakdown rows, got %d", len(rec.DetailedBreakdown))
	}

	// Empty subject still exports a valid document.
	export, err = s.ExportSubject("Chemistry")
	if err != nil {
		t.Fatalf("ExportSubject empty: %v", err)
	}
	if len(export.Records) != 0 {
		t.Errorf("expected 0 records, got %d", len(export.Records))
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id, err := s.CreateUser(model.User{
		Username:     "mr_smith",
		DisplayName:  "Mr. Smith",
		PasswordHash: "hash",
		Role:         model.UserRoleTeacher,
		Subject:      "Geography",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.GetUserByUsername("mr_smith")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.ID != id {
		t.Errorf("expected id %d, got %d", id, u.ID)
	}
	if u.Role != model.UserRoleTeacher {
		t.Errorf("expected teacher role, got %q", u.Role)
	}
	if u.Subject != "Geography" {
		t.Errorf("expected subject Geography, got %q", u.Subject)
	}

	u, err = s.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u == nil || u.Username != "mr_smith" {
		t.Errorf("unexpected user: %+v", u)
	}

	// Missing users return nil, nil.
	u, err = s.GetUserByUsername("ghost")
	if err != nil {
		t.Fatalf("GetUserByUsername missing: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}

	// Duplicate usernames are rejected.
	if _, err := s.CreateUser(model.User{Username: "mr_smith", Role: model.UserRoleAdmin}); err == nil {
		t.Error("expected error for duplicate username")
	}

	if _, err := s.CreateUser(model.User{Username: "alice", Role: model.UserRoleStudent, Active: true}); err != nil {
		t.Fatalf("CreateUser alice: %v", err)
	}
	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestAuthSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(model.User{Username: "alice", Role: model.UserRoleStudent, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char hex token, got %d chars", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.UserID != id {
		t.Errorf("expected user %d, got %d", id, sess.UserID)
	}

	// Unknown token.
	sess, err = s.GetAuthSession("deadbeef")
	if err != nil {
		t.Fatalf("GetAuthSession unknown: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil session, got %+v", sess)
	}

	// Delete.
	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, _ = s.GetAuthSession(token)
	if sess != nil {
		t.Error("expected session gone after delete")
	}
}

func TestAuthSessionExpiry(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(model.User{Username: "bob", Role: model.UserRoleStudent, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}

	// Force the session into the past.
	_, err = s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`,
		time.Now().Add(-time.Minute), token)
	if err != nil {
		t.Fatalf("expire session: %v", err)
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession expired: %v", err)
	}
	if sess != nil {
		t.Error("expected expired session to be rejected")
	}

	// Lookup removed the expired row.
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM auth_sessions`).Scan(&n); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if n != 0 {
		t.Errorf("expected expired session deleted, %d rows remain", n)
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	s := newTestStore(t)

	id, _ := s.CreateUser(model.User{Username: "carol", Role: model.UserRoleStudent, Active: true})
	live, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	stale, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour), stale); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	if err := s.CleanupExpiredSessions(); err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}

	sess, _ := s.GetAuthSession(live)
	if sess == nil {
		t.Error("live session must survive cleanup")
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM auth_sessions`).Scan(&n); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 session after cleanup, got %d", n)
	}
}
