package model

import (
	"encoding/json"
	"time"
)

// ResultsExport is the top-level JSON structure for lesson result export.
type ResultsExport struct {
	CohortID   string          `json:"cohort_id"`
	Program    string          `json:"program"`
	Date       string          `json:"date"`
	NumLessons int             `json:"num_lessons"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one student's lesson attempt data for export.
type StudentResult struct {
	ExternalID    string        `json:"external_id"`
	DisplayName   string        `json:"display_name"`
	LessonSlug    string        `json:"lesson_slug"`
	LessonTitle   string        `json:"lesson_title"`
	AttemptNumber int           `json:"attempt_number"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Steps         []StepExport  `json:"steps"`
	Score         *float64      `json:"score,omitempty"`
}

// StepExport holds per-step data for export.
type StepExport struct {
	StepID    string          `json:"step_id"`
	Completed bool            `json:"completed"`
	Correct   *bool           `json:"correct,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
