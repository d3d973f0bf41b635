package engine

import "fmt"

// phase is the per-activation state of a step.
type phase int

const (
	phaseUnanswered phase = iota
	phaseAnswerable
	phaseEvaluated
)

// evaluator turns user interaction on one step into completion/correctness
// results. One implementation per step variant. Evaluators never return
// runtime errors for policy situations (trigger too early, answer locked);
// errors are reserved for malformed events such as unknown option IDs.
type evaluator interface {
	// activate announces the step becoming current. Auto-completing variants
	// report their result here.
	activate()
	// apply delivers a selection change.
	apply(ev Event) error
	// trigger delivers the host's check signal. No-op when the local
	// precondition does not hold.
	trigger()
	// answer returns the current selection state.
	answer() AnswerState
	// state returns the activation phase.
	state() phase
}

// base carries the state shared by all evaluators: the step, the result
// callback, the sound collaborator, and the one-shot grading latches.
type base struct {
	step   Step
	emit   func(Result)
	sounds Sounds
	review bool

	// evaluated covers the current activation; completed is sticky across
	// review re-answers so the host never loses the advance permission it
	// was already granted.
	evaluated bool
	completed bool
	correct   *bool
	cuePlayed bool
}

func newBase(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) base {
	b := base{step: step, emit: emit, sounds: sounds, review: review}
	if saved != nil && saved.Completed {
		b.evaluated = true
		b.completed = true
		b.correct = saved.Correct
		// A resumed step already played its cue in the original activation.
		b.cuePlayed = true
	}
	return b
}

// locked reports whether the answer can no longer change.
func (b *base) locked() bool {
	return b.evaluated && !b.review
}

// reopen returns the step to Answerable during review without clearing the
// completed signal.
func (b *base) reopen() {
	if b.evaluated && b.review {
		b.evaluated = false
	}
}

// grade records the verdict, plays the feedback cue at most once per
// activation, and reports the final result.
func (b *base) grade(correct *bool, answer AnswerState) {
	b.evaluated = true
	b.completed = true
	b.correct = correct
	if correct != nil && !b.cuePlayed {
		b.cuePlayed = true
		if *correct {
			b.sounds.PlayCorrect()
		} else {
			b.sounds.PlayIncorrect()
		}
	}
	b.emit(Result{Completed: true, Correct: correct, CanAction: true, Answer: answer})
}

// report emits an intermediate (not yet graded) result.
func (b *base) report(canAction bool, answer AnswerState) {
	b.emit(Result{Completed: b.completed, Correct: b.correct, CanAction: canAction, Answer: answer})
}

// verdict maps raw correctness to the reported value: non-graded steps never
// surface a correct/incorrect verdict.
func (b *base) verdict(raw bool) *bool {
	if !b.step.Graded() {
		return nil
	}
	return boolPtr(raw)
}

// newEvaluator is the single dispatch point over the step union.
func newEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) (evaluator, error) {
	switch step.Type {
	case StepInfo:
		return newInfoEvaluator(step, emit, sounds, review, saved), nil
	case StepSummary:
		return newSummaryEvaluator(step, emit, sounds, review, saved), nil
	case StepMCQ:
		return newMCQEvaluator(step, emit, sounds, review, saved), nil
	case StepTrueFalse:
		return newTrueFalseEvaluator(step, emit, sounds, review, saved), nil
	case StepMultiSelect:
		return newMultiSelectEvaluator(step, emit, sounds, review, saved), nil
	case StepOrder:
		return newOrderEvaluator(step, emit, sounds, review, saved), nil
	case StepMatch:
		return newMatchEvaluator(step, emit, sounds, review, saved), nil
	}
	return nil, fmt.Errorf("step %s: unknown step type %q", step.ID, step.Type)
}
