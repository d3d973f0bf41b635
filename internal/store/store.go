package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finlit-labs/lessonforge/internal/engine"
	"github.com/finlit-labs/lessonforge/internal/model"

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
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
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

	CREATE TABLE IF NOT EXISTS lessons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lesson_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lesson_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		step_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		UNIQUE (lesson_id, position),
		UNIQUE (lesson_id, step_id),
		FOREIGN KEY (lesson_id) REFERENCES lessons(id)
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		public_id TEXT NOT NULL UNIQUE,
		lesson_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		cursor INTEGER NOT NULL DEFAULT 0,
		score REAL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (lesson_id) REFERENCES lessons(id),
		FOREIGN KEY (student_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS step_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id INTEGER NOT NULL,
		step_id TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT 0,
		correct BOOLEAN,
		answer_json TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL,
		UNIQUE (attempt_id, step_id),
		FOREIGN KEY (attempt_id) REFERENCES attempts(id)
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateLesson stores a lesson and its validated step list in one transaction.
func (s *Store) CreateLesson(l model.Lesson, steps []engine.Step) (int64, error) {
	if err := engine.ValidateSteps(steps); err != nil {
		return 0, fmt.Errorf("lesson %s: %w", l.Slug, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO lessons (slug, title, description, created_at) VALUES (?, ?, ?, ?)`,
		l.Slug, l.Title, l.Description, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	lessonID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, step := range steps {
		payload, err := json.Marshal(step)
		if err != nil {
			return 0, fmt.Errorf("marshal step %s: %w", step.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO lesson_steps (lesson_id, position, step_id, payload) VALUES (?, ?, ?, ?)`,
			lessonID, i, step.ID, string(payload),
		)
		if err != nil {
			return 0, fmt.Errorf("insert step %s: %w", step.ID, err)
		}
	}

	return lessonID, tx.Commit()
}

// GetLesson returns a lesson by ID.
func (s *Store) GetLesson(id int64) (model.Lesson, error) {
	var l model.Lesson
	err := s.db.QueryRow(
		`SELECT id, slug, title, description, created_at FROM lessons WHERE id = ?`, id,
	).Scan(&l.ID, &l.Slug, &l.Title, &l.Description, &l.CreatedAt)
	return l, err
}

// GetLessonBySlug returns a lesson by slug, or nil if not found.
func (s *Store) GetLessonBySlug(slug string) (*model.Lesson, error) {
	var l model.Lesson
	err := s.db.QueryRow(
		`SELECT id, slug, title, description, created_at FROM lessons WHERE slug = ?`, slug,
	).Scan(&l.ID, &l.Slug, &l.Title, &l.Description, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLessons returns all lessons ordered by slug.
func (s *Store) ListLessons() ([]model.Lesson, error) {
	rows, err := s.db.Query(`SELECT id, slug, title, description, created_at FROM lessons ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.ID, &l.Slug, &l.Title, &l.Description, &l.CreatedAt); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// GetLessonSteps returns a lesson's steps in authored order.
func (s *Store) GetLessonSteps(lessonID int64) ([]engine.Step, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM lesson_steps WHERE lesson_id = ? ORDER BY position`, lessonID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []engine.Step
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var step engine.Step
		if err := json.Unmarshal([]byte(payload), &step); err != nil {
			return nil, fmt.Errorf("unmarshal step payload: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// LessonCount returns the number of lessons in the database.
func (s *Store) LessonCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM lessons`).Scan(&count)
	return count, err
}
