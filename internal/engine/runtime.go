package engine

import "fmt"

// Runtime drives one step activation. It owns the action-trigger counter the
// host's continue/check control increments, the review flag, and the latest
// reported result. The counter is one-directional: the host only ever
// increments it, and the evaluator decides whether its precondition holds.
type Runtime struct {
	step     Step
	eval     evaluator
	triggers int
	review   bool
	last     Result
	hasLast  bool
}

// RuntimeConfig customizes a step activation.
type RuntimeConfig struct {
	// Sounds receives the correct/incorrect cues. Defaults to NopSounds.
	Sounds Sounds
	// Review re-activates a previously completed step and permits
	// re-answering without revoking the completed signal.
	Review bool
	// Saved restores the answer state from a prior activation.
	Saved *SavedState
	// OnResult observes every result the evaluator reports, after the
	// runtime records it. Optional.
	OnResult func(Result)
}

// NewRuntime activates a step. The evaluator reports its initial result
// (auto-completion, resumed state) before NewRuntime returns.
func NewRuntime(step Step, cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Sounds == nil {
		cfg.Sounds = NopSounds{}
	}
	r := &Runtime{step: step, review: cfg.Review}
	emit := func(res Result) {
		r.last = res
		r.hasLast = true
		if cfg.OnResult != nil {
			cfg.OnResult(res)
		}
	}
	eval, err := newEvaluator(step, emit, cfg.Sounds, cfg.Review, cfg.Saved)
	if err != nil {
		return nil, err
	}
	r.eval = eval
	eval.activate()
	return r, nil
}

// Step returns the step this runtime drives.
func (r *Runtime) Step() Step { return r.step }

// Review reports whether the activation is in review mode.
func (r *Runtime) Review() bool { return r.review }

// Apply delivers a user interaction to the evaluator. Malformed events
// (unknown IDs, wrong kind for the variant) return an error; events arriving
// after the answer locked are silently ignored.
func (r *Runtime) Apply(ev Event) error {
	if err := r.eval.apply(ev); err != nil {
		return fmt.Errorf("apply %s: %w", ev.Kind, err)
	}
	return nil
}

// Trigger increments the action counter and forwards the check signal. A
// trigger with no answer selected, or after the step has evaluated outside
// review, is a no-op.
func (r *Runtime) Trigger() {
	r.triggers++
	r.eval.trigger()
}

// Triggers returns how many times the host has fired the action control.
func (r *Runtime) Triggers() int { return r.triggers }

// Last returns the most recent result the evaluator reported. ok is false
// when the evaluator has not reported yet (interactive step, untouched).
func (r *Runtime) Last() (Result, bool) {
	return r.last, r.hasLast
}

// Answer returns the current selection state, reported or not.
func (r *Runtime) Answer() AnswerState { return r.eval.answer() }

// Answerable reports whether the step has a live selection awaiting its
// check, or never needed one.
func (r *Runtime) Answerable() bool { return r.eval.state() == phaseAnswerable }

// Evaluated reports whether the current activation has graded.
func (r *Runtime) Evaluated() bool { return r.eval.state() == phaseEvaluated }
