package store

import (
	"database/sql"
	"fmt"

	"github.com/anandks/papergrader/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_name TEXT NOT NULL,
		subject TEXT NOT NULL,
		grader_username TEXT NOT NULL,
		total_score INTEGER NOT NULL,
		max_score INTEGER NOT NULL,
		percentage REAL NOT NULL,
		overall_feedback TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS detailed_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		result_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		teacher_answer TEXT NOT NULL,
		student_answer TEXT NOT NULL,
		similarity REAL NOT NULL DEFAULT 0,
		score_str TEXT NOT NULL,
		feedback TEXT NOT NULL,
		FOREIGN KEY (result_id) REFERENCES results(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_results_student ON results(student_name);
	CREATE INDEX IF NOT EXISTS idx_results_subject ON results(subject);
	CREATE INDEX IF NOT EXISTS idx_detailed_result_id ON detailed_results(result_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRecord persists one grading record with its breakdown in a single
// transaction and returns the assigned result ID.
func (s *Store) SaveRecord(rec model.GradingRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO results (student_name, subject, grader_username, total_score, max_score, percentage, overall_feedback, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StudentName, rec.Subject, rec.GraderName,
		rec.Summary.TotalScore, rec.Summary.MaxScore, rec.Summary.Percentage,
		rec.Summary.OverallFeedback, rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, qr := range rec.Results {
		_, err := tx.Exec(
			`INSERT INTO detailed_results (result_id, question, teacher_answer, student_answer, similarity, score_str, feedback)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			resultID, qr.Question, qr.TeacherAnswer, qr.StudentAnswer, qr.Similarity, qr.ScoreString(), qr.Feedback,
		)
		if err != nil {
			return 0, fmt.Errorf("insert detailed result for question %s: %w", qr.Question, err)
		}
	}

	return resultID, tx.Commit()
}

// ResultsForStudent returns all results for one student, most recent first.
func (s *Store) ResultsForStudent(studentName string) ([]model.ResultRow, error) {
	return s.queryResults(
		`SELECT id, student_name, subject, grader_username, total_score, max_score, percentage, overall_feedback, timestamp
		 FROM results WHERE student_name = ? ORDER BY timestamp DESC`, studentName)
}

// ResultsForSubject returns all results for one subject, grouped by student
// and most recent first within each student.
func (s *Store) ResultsForSubject(subject string) ([]model.ResultRow, error) {
	return s.queryResults(
		`SELECT id, student_name, subject, grader_username, total_score, max_score, percentage, overall_feedback, timestamp
		 FROM results WHERE subject = ? ORDER BY student_name, timestamp DESC`, subject)
}

func (s *Store) queryResults(query string, args ...any) ([]model.ResultRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ResultRow
	for rows.Next() {
		var r model.ResultRow
		if err := rows.Scan(&r.ID, &r.StudentName, &r.Subject, &r.GraderName,
			&r.TotalScore, &r.MaxScore, &r.Percentage, &r.OverallFeedback, &r.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetResult returns one stored result row by ID.
func (s *Store) GetResult(id int64) (model.ResultRow, error) {
	var r model.ResultRow
	err := s.db.QueryRow(
		`SELECT id, student_name, subject, grader_username, total_score, max_score, percentage, overall_feedback, timestamp
		 FROM results WHERE id = ?`, id,
	).Scan(&r.ID, &r.StudentName, &r.Subject, &r.GraderName,
		&r.TotalScore, &r.MaxScore, &r.Percentage, &r.OverallFeedback, &r.Timestamp)
	return r, err
}

// DetailedResult returns the per-question breakdown for one result.
func (s *Store) DetailedResult(resultID int64) ([]model.DetailedRow, error) {
	rows, err := s.db.Query(
		`SELECT question, teacher_answer, student_answer, similarity, score_str, feedback
		 FROM detailed_results WHERE result_id = ? ORDER BY id`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var breakdown []model.DetailedRow
	for rows.Next() {
		var d model.DetailedRow
		if err := rows.Scan(&d.Question, &d.TeacherAnswer, &d.StudentAnswer, &d.Similarity, &d.Score, &d.Feedback); err != nil {
			return nil, err
		}
		breakdown = append(breakdown, d)
	}
	return breakdown, rows.Err()
}
