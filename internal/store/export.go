package store

import (
	"fmt"

	"github.com/finlit-labs/lessonforge/internal/model"
)

// ExportAllAttempts builds export-ready student results from all attempts.
func (s *Store) ExportAllAttempts() ([]model.StudentResult, error) {
	attempts, err := s.ListAttempts()
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	// Track attempt count per student+lesson for attempt_number. Attempts
	// come newest first, so walk backwards for chronological numbering.
	type key struct {
		student int64
		lesson  int64
	}
	attemptCount := make(map[key]int)

	results := make([]model.StudentResult, 0, len(attempts))
	for i := len(attempts) - 1; i >= 0; i-- {
		a := attempts[i]
		k := key{a.StudentID, a.LessonID}
		attemptCount[k]++

		lesson, err := s.GetLesson(a.LessonID)
		if err != nil {
			return nil, fmt.Errorf("get lesson %d: %w", a.LessonID, err)
		}
		user, err := s.GetUserByID(a.StudentID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", a.StudentID, err)
		}
		stepResults, err := s.GetStepResults(a.ID)
		if err != nil {
			return nil, fmt.Errorf("get step results for attempt %d: %w", a.ID, err)
		}

		var externalID, displayName string
		if user != nil {
			externalID = user.ExternalID
			displayName = user.DisplayName
		}

		steps := make([]model.StepExport, 0, len(stepResults))
		for _, rec := range stepResults {
			steps = append(steps, model.StepExport{
				StepID:    rec.StepID,
				Completed: rec.Completed,
				Correct:   rec.Correct,
				Answer:    rec.AnswerJSON,
				UpdatedAt: rec.UpdatedAt,
			})
		}

		results = append(results, model.StudentResult{
			ExternalID:    externalID,
			DisplayName:   displayName,
			LessonSlug:    lesson.Slug,
			LessonTitle:   lesson.Title,
			AttemptNumber: attemptCount[k],
			Status:        a.Status,
			StartedAt:     a.StartedAt,
			CompletedAt:   a.CompletedAt,
			Steps:         steps,
			Score:         a.Score,
		})
	}

	return results, nil
}
