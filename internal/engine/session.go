package engine

import (
	"errors"
	"fmt"
)

// ErrStepIncomplete is returned by Advance while the current step has not
// reported completion.
var ErrStepIncomplete = errors.New("current step is not completed")

// StepResult pairs a step with its last reported outcome.
type StepResult struct {
	StepID    string      `json:"step_id"`
	Completed bool        `json:"completed"`
	Correct   *bool       `json:"correct,omitempty"`
	Answer    AnswerState `json:"answer"`
}

// Summary is the aggregate the session hands to the completion callback.
type Summary struct {
	Steps    []StepResult `json:"steps"`
	Assessed int          `json:"assessed"`
	Correct  int          `json:"correct"`
	// Score is the percentage of assessment steps answered correctly.
	Score float64 `json:"score"`
}

// CompletionFunc receives the finished lesson's results. Returning an error
// keeps the session un-completed so the host can retry the save; the
// session's local state is already final, so retrying is idempotent.
type CompletionFunc func(Summary) error

// SessionConfig customizes a lesson session.
type SessionConfig struct {
	Sounds     Sounds
	OnComplete CompletionFunc
	// Resume restores per-step state from a persisted attempt.
	Resume map[string]SavedState
	// Cursor is the step index to resume at.
	Cursor int
}

// Session sequences a lesson's steps: it owns the cursor, the per-step
// result map, and the score tallies. Every transition is user- or
// host-initiated; the session never times out a step or auto-advances.
type Session struct {
	steps      []Step
	cursor     int
	runtime    *Runtime
	results    map[string]Result
	verdicts   map[string]bool // frozen first verdict per assessment step
	sounds     Sounds
	onComplete CompletionFunc
	completed  bool
}

// NewSession validates the step list and activates the step at the resume
// cursor (the first step for a fresh attempt).
func NewSession(steps []Step, cfg SessionConfig) (*Session, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, fmt.Errorf("validate lesson: %w", err)
	}
	if cfg.Sounds == nil {
		cfg.Sounds = NopSounds{}
	}
	if cfg.Cursor < 0 || cfg.Cursor >= len(steps) {
		cfg.Cursor = 0
	}
	s := &Session{
		steps:      steps,
		cursor:     cfg.Cursor,
		results:    make(map[string]Result, len(steps)),
		verdicts:   make(map[string]bool),
		sounds:     cfg.Sounds,
		onComplete: cfg.OnComplete,
	}
	for id, saved := range cfg.Resume {
		res := Result{Completed: saved.Completed, Correct: saved.Correct, Answer: saved.Answer}
		s.results[id] = res
		s.recordVerdict(id, res)
	}
	if err := s.activate(cfg.Cursor); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active step and its index.
func (s *Session) Current() (Step, int) {
	return s.steps[s.cursor], s.cursor
}

// Runtime returns the active step's runtime.
func (s *Session) Runtime() *Runtime { return s.runtime }

// Steps returns the lesson's step list.
func (s *Session) Steps() []Step { return s.steps }

// Completed reports whether the lesson finished and its results were
// accepted by the completion callback.
func (s *Session) Completed() bool { return s.completed }

// Apply forwards a user interaction to the active step.
func (s *Session) Apply(ev Event) error { return s.runtime.Apply(ev) }

// Trigger forwards the host's check/continue signal to the active step.
func (s *Session) Trigger() { s.runtime.Trigger() }

// Result returns the last recorded result for a step ID.
func (s *Session) Result(stepID string) (Result, bool) {
	res, ok := s.results[stepID]
	return res, ok
}

// CanAdvance reports whether the active step has completed.
func (s *Session) CanAdvance() bool {
	res, ok := s.results[s.steps[s.cursor].ID]
	return ok && res.Completed
}

// Advance moves the cursor forward one step. Past the last step it fires the
// completion callback; a callback error leaves the session in place so the
// host can retry.
func (s *Session) Advance() error {
	if s.completed {
		return nil
	}
	if !s.CanAdvance() {
		return ErrStepIncomplete
	}
	if s.cursor == len(s.steps)-1 {
		if s.onComplete != nil {
			if err := s.onComplete(s.Summary()); err != nil {
				return fmt.Errorf("complete lesson: %w", err)
			}
		}
		s.completed = true
		return nil
	}
	return s.activate(s.cursor + 1)
}

// Retreat moves the cursor back one step, re-activating it in review mode
// with its saved answers.
func (s *Session) Retreat() error {
	if s.cursor == 0 {
		return fmt.Errorf("already at first step")
	}
	return s.activate(s.cursor - 1)
}

// Jump moves the cursor to an arbitrary step that is either behind the
// cursor or already completed.
func (s *Session) Jump(i int) error {
	if i < 0 || i >= len(s.steps) {
		return fmt.Errorf("step index %d out of range", i)
	}
	if i > s.cursor {
		if res, ok := s.results[s.steps[i].ID]; !ok || !res.Completed {
			return fmt.Errorf("step %d not reached yet", i)
		}
	}
	return s.activate(i)
}

// Summary builds the per-step results and aggregate score. Only assessment
// steps with a recorded verdict count; the first verdict is frozen, so
// re-answering on review never changes the score contribution.
func (s *Session) Summary() Summary {
	sum := Summary{Steps: make([]StepResult, 0, len(s.steps))}
	for _, st := range s.steps {
		res := s.results[st.ID]
		sum.Steps = append(sum.Steps, StepResult{
			StepID:    st.ID,
			Completed: res.Completed,
			Correct:   res.Correct,
			Answer:    res.Answer,
		})
		if st.IsAssessment && st.Graded() {
			sum.Assessed++
			if s.verdicts[st.ID] {
				sum.Correct++
			}
		}
	}
	if sum.Assessed > 0 {
		sum.Score = float64(sum.Correct) / float64(sum.Assessed) * 100
	}
	return sum
}

func (s *Session) activate(i int) error {
	step := s.steps[i]
	var saved *SavedState
	review := false
	if res, ok := s.results[step.ID]; ok {
		saved = &SavedState{Answer: res.Answer, Completed: res.Completed, Correct: res.Correct}
		review = res.Completed
	}
	rt, err := NewRuntime(step, RuntimeConfig{
		Sounds: s.sounds,
		Review: review,
		Saved:  saved,
		OnResult: func(res Result) {
			s.results[step.ID] = res
			s.recordVerdict(step.ID, res)
		},
	})
	if err != nil {
		return err
	}
	s.cursor = i
	s.runtime = rt
	return nil
}

// recordVerdict freezes the first graded verdict of an assessment step.
func (s *Session) recordVerdict(stepID string, res Result) {
	if res.Correct == nil {
		return
	}
	if _, done := s.verdicts[stepID]; done {
		return
	}
	s.verdicts[stepID] = *res.Correct
}
