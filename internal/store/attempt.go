package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finlit-labs/lessonforge/internal/model"
)

// CreateAttempt starts a lesson attempt for a student. The public ID is what
// clients use to address the attempt; row IDs stay internal.
func (s *Store) CreateAttempt(lessonID, studentID int64) (model.Attempt, error) {
	a := model.Attempt{
		PublicID:  uuid.NewString(),
		LessonID:  lessonID,
		StudentID: studentID,
		Status:    model.AttemptInProgress,
		StartedAt: time.Now(),
	}
	res, err := s.db.Exec(
		`INSERT INTO attempts (public_id, lesson_id, student_id, status, cursor, started_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		a.PublicID, a.LessonID, a.StudentID, a.Status, a.StartedAt,
	)
	if err != nil {
		return model.Attempt{}, err
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return model.Attempt{}, err
	}
	return a, nil
}

const attemptColumns = `id, public_id, lesson_id, student_id, status, cursor, score, started_at, completed_at`

func scanAttempt(row interface{ Scan(...any) error }) (model.Attempt, error) {
	var a model.Attempt
	err := row.Scan(&a.ID, &a.PublicID, &a.LessonID, &a.StudentID, &a.Status,
		&a.Cursor, &a.Score, &a.StartedAt, &a.CompletedAt)
	return a, err
}

// GetAttemptByPublicID returns an attempt by its public ID, or nil if not found.
func (s *Store) GetAttemptByPublicID(publicID string) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRow(
		`SELECT `+attemptColumns+` FROM attempts WHERE public_id = ?`, publicID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttempts returns all attempts, newest first.
func (s *Store) ListAttempts() ([]model.Attempt, error) {
	return s.listAttempts(`SELECT ` + attemptColumns + ` FROM attempts ORDER BY id DESC`)
}

// ListAttemptsForStudent returns a student's attempts, newest first.
func (s *Store) ListAttemptsForStudent(studentID int64) ([]model.Attempt, error) {
	return s.listAttempts(
		`SELECT `+attemptColumns+` FROM attempts WHERE student_id = ? ORDER BY id DESC`, studentID,
	)
}

func (s *Store) listAttempts(query string, args ...any) ([]model.Attempt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// UpdateAttemptCursor persists the attempt's current step index.
func (s *Store) UpdateAttemptCursor(id int64, cursor int) error {
	_, err := s.db.Exec(`UPDATE attempts SET cursor = ? WHERE id = ?`, cursor, id)
	return err
}

// CompleteAttempt marks an attempt finished with its aggregate score.
func (s *Store) CompleteAttempt(id int64, score float64) error {
	_, err := s.db.Exec(
		`UPDATE attempts SET status = ?, score = ?, completed_at = ? WHERE id = ?`,
		model.AttemptCompleted, score, time.Now(), id,
	)
	return err
}

// AbandonAttempt marks an attempt abandoned.
func (s *Store) AbandonAttempt(id int64) error {
	_, err := s.db.Exec(`UPDATE attempts SET status = ? WHERE id = ?`, model.AttemptAbandoned, id)
	return err
}

// UpsertStepResult inserts or updates the persisted outcome of one step.
func (s *Store) UpsertStepResult(rec model.StepResultRecord) error {
	answer := string(rec.AnswerJSON)
	if answer == "" {
		answer = "{}"
	}
	_, err := s.db.Exec(
		`INSERT INTO step_results (attempt_id, step_id, completed, correct, answer_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(attempt_id, step_id) DO UPDATE SET
			completed = excluded.completed,
			correct = excluded.correct,
			answer_json = excluded.answer_json,
			updated_at = excluded.updated_at`,
		rec.AttemptID, rec.StepID, rec.Completed, rec.Correct, answer, time.Now(),
	)
	return err
}

// GetStepResults returns all persisted step results for an attempt.
func (s *Store) GetStepResults(attemptID int64) ([]model.StepResultRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, attempt_id, step_id, completed, correct, answer_json, updated_at
		 FROM step_results WHERE attempt_id = ? ORDER BY id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.StepResultRecord
	for rows.Next() {
		var rec model.StepResultRecord
		var answer string
		if err := rows.Scan(&rec.ID, &rec.AttemptID, &rec.StepID, &rec.Completed,
			&rec.Correct, &answer, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.AnswerJSON = []byte(answer)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// GetAttemptView builds a full view of an attempt with its lesson and results.
func (s *Store) GetAttemptView(publicID string) (*model.AttemptView, error) {
	attempt, err := s.GetAttemptByPublicID(publicID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, nil
	}
	lesson, err := s.GetLesson(attempt.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson %d: %w", attempt.LessonID, err)
	}
	results, err := s.GetStepResults(attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("get step results: %w", err)
	}
	return &model.AttemptView{Attempt: *attempt, Lesson: lesson, Results: results}, nil
}
