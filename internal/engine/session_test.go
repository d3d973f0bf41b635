package engine

import (
	"errors"
	"fmt"
	"testing"
)

func lessonSteps() []Step {
	return []Step{
		{ID: "intro", Type: StepInfo, Body: "Welcome to cashflow basics."},
		{
			ID:              "q1",
			Type:            StepMCQ,
			Question:        "Which is an asset?",
			IsAssessment:    true,
			RecordIncorrect: true,
			Options: []Option{
				{ID: "x", Label: "Car loan", IsCorrect: false},
				{ID: "y", Label: "Rental income", IsCorrect: true},
			},
		},
		{
			ID:              "q2",
			Type:            StepTrueFalse,
			Statement:       "Liabilities take money out of your pocket.",
			CorrectValue:    true,
			IsAssessment:    true,
			RecordIncorrect: true,
		},
		{ID: "end", Type: StepSummary, Title: "Lesson complete"},
	}
}

func newTestSession(t *testing.T, steps []Step, cfg SessionConfig) *Session {
	t.Helper()
	s, err := NewSession(steps, cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestSessionRejectsInvalidLesson(t *testing.T) {
	steps := lessonSteps()
	steps[2].ID = steps[1].ID
	if _, err := NewSession(steps, SessionConfig{}); err == nil {
		t.Error("expected validation error for duplicate step id")
	}

	if _, err := NewSession(nil, SessionConfig{}); err == nil {
		t.Error("expected validation error for empty lesson")
	}
}

func TestSessionAdvanceGatedOnCompletion(t *testing.T) {
	s := newTestSession(t, lessonSteps(), SessionConfig{})

	// Info step auto-completes, so the first advance is allowed.
	if !s.CanAdvance() {
		t.Fatal("info step should allow advancing")
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// The mcq has no answer yet.
	if s.CanAdvance() {
		t.Fatal("unanswered mcq must block advancing")
	}
	if err := s.Advance(); !errors.Is(err, ErrStepIncomplete) {
		t.Fatalf("expected ErrStepIncomplete, got %v", err)
	}

	if err := s.Apply(Event{Kind: EventSelect, OptionID: "y"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance after answer: %v", err)
	}
	if step, _ := s.Current(); step.ID != "q2" {
		t.Errorf("expected cursor on q2, got %s", step.ID)
	}
}

func completeLesson(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Advance(); err != nil { // intro
		t.Fatalf("advance intro: %v", err)
	}
	if err := s.Apply(Event{Kind: EventSelect, OptionID: "y"}); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("advance q1: %v", err)
	}
	if err := s.Apply(Event{Kind: EventSelect, Value: boolPtr(false)}); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("advance q2: %v", err)
	}
}

func TestSessionCompletion(t *testing.T) {
	var got *Summary
	s := newTestSession(t, lessonSteps(), SessionConfig{
		OnComplete: func(sum Summary) error {
			got = &sum
			return nil
		},
	})

	completeLesson(t, s)

	if s.Completed() {
		t.Fatal("session completed before the final advance")
	}
	if err := s.Advance(); err != nil { // summary step, fires completion
		t.Fatalf("final advance: %v", err)
	}
	if !s.Completed() {
		t.Fatal("session should be completed")
	}
	if got == nil {
		t.Fatal("completion callback not invoked")
	}
	if got.Assessed != 2 {
		t.Errorf("expected 2 assessed steps, got %d", got.Assessed)
	}
	if got.Correct != 1 {
		t.Errorf("expected 1 correct (q2 answered wrong), got %d", got.Correct)
	}
	if got.Score != 50 {
		t.Errorf("expected score 50, got %f", got.Score)
	}
	if len(got.Steps) != 4 {
		t.Errorf("expected 4 step results, got %d", len(got.Steps))
	}

	// Advancing a completed session is a no-op.
	if err := s.Advance(); err != nil {
		t.Errorf("advance after completion: %v", err)
	}
}

func TestSessionCompletionRetry(t *testing.T) {
	calls := 0
	fail := true
	s := newTestSession(t, lessonSteps(), SessionConfig{
		OnComplete: func(Summary) error {
			calls++
			if fail {
				return fmt.Errorf("persistence unavailable")
			}
			return nil
		},
	})

	completeLesson(t, s)

	if err := s.Advance(); err == nil {
		t.Fatal("expected completion error to propagate")
	}
	if s.Completed() {
		t.Fatal("failed save must leave the session un-completed")
	}

	// Local state survives, so retrying the same advance is safe.
	fail = false
	if err := s.Advance(); err != nil {
		t.Fatalf("retry advance: %v", err)
	}
	if !s.Completed() || calls != 2 {
		t.Errorf("expected completion after retry, completed=%v calls=%d", s.Completed(), calls)
	}
}

func TestSessionRetreatReview(t *testing.T) {
	s := newTestSession(t, lessonSteps(), SessionConfig{})
	_ = s.Advance()
	if err := s.Apply(Event{Kind: EventSelect, OptionID: "x"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	_ = s.Advance()

	if err := s.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	step, i := s.Current()
	if step.ID != "q1" || i != 1 {
		t.Fatalf("expected cursor back on q1, got %s at %d", step.ID, i)
	}
	if !s.Runtime().Review() {
		t.Error("revisited completed step should be in review mode")
	}
	if got := s.Runtime().Answer().SelectedOptionID; got != "x" {
		t.Errorf("saved answer not restored, got %q", got)
	}

	// Retreating from the first step fails.
	s2 := newTestSession(t, lessonSteps(), SessionConfig{})
	if err := s2.Retreat(); err == nil {
		t.Error("expected error retreating from first step")
	}
}

func TestSessionScoreFrozenOnReview(t *testing.T) {
	s := newTestSession(t, lessonSteps(), SessionConfig{})
	_ = s.Advance()
	_ = s.Apply(Event{Kind: EventSelect, OptionID: "y"}) // correct
	_ = s.Advance()

	// Go back and flip the answer to wrong.
	if err := s.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if err := s.Apply(Event{Kind: EventSelect, OptionID: "x"}); err != nil {
		t.Fatalf("re-answer: %v", err)
	}

	sum := s.Summary()
	if sum.Correct != 1 {
		t.Errorf("original correct verdict must stay frozen, got %d", sum.Correct)
	}
	// The recorded answer still reflects the latest selection.
	res, ok := s.Result("q1")
	if !ok || res.Answer.SelectedOptionID != "x" {
		t.Errorf("expected latest answer x, got %+v", res)
	}
}

func TestSessionJump(t *testing.T) {
	s := newTestSession(t, lessonSteps(), SessionConfig{})
	_ = s.Advance()
	_ = s.Apply(Event{Kind: EventSelect, OptionID: "y"})
	_ = s.Advance()

	// Jumping forward past the cursor to an unreached step fails.
	if err := s.Jump(3); err == nil {
		t.Error("expected error jumping to unreached step")
	}
	if err := s.Jump(-1); err == nil {
		t.Error("expected error for negative index")
	}

	if err := s.Jump(0); err != nil {
		t.Fatalf("Jump(0): %v", err)
	}
	if _, i := s.Current(); i != 0 {
		t.Errorf("expected cursor 0, got %d", i)
	}

	// Completed steps ahead of the cursor are reachable again.
	if err := s.Jump(1); err != nil {
		t.Fatalf("Jump(1): %v", err)
	}
	if !s.Runtime().Review() {
		t.Error("jump to completed step should review")
	}
}

func TestSessionResume(t *testing.T) {
	resume := map[string]SavedState{
		"intro": {Completed: true},
		"q1": {
			Answer:    AnswerState{SelectedOptionID: "y"},
			Completed: true,
			Correct:   boolPtr(true),
		},
	}
	s := newTestSession(t, lessonSteps(), SessionConfig{Resume: resume, Cursor: 2})

	step, i := s.Current()
	if step.ID != "q2" || i != 2 {
		t.Fatalf("expected resume at q2, got %s at %d", step.ID, i)
	}

	_ = s.Apply(Event{Kind: EventSelect, Value: boolPtr(true)})
	_ = s.Advance()
	sum := s.Summary()
	if sum.Correct != 2 || sum.Assessed != 2 {
		t.Errorf("expected 2/2 after resume, got %d/%d", sum.Correct, sum.Assessed)
	}
}

func TestSessionResumeBadCursorFallsBack(t *testing.T) {
	s := newTestSession(t, lessonSteps(), SessionConfig{Cursor: 99})
	if _, i := s.Current(); i != 0 {
		t.Errorf("out-of-range cursor should fall back to 0, got %d", i)
	}
}
