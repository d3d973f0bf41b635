package engine

import "fmt"

// mcqEvaluator handles multiple-choice steps. Inline steps grade the instant
// an option is clicked; full-screen steps defer grading to the action trigger.
type mcqEvaluator struct {
	base
	selected string
}

func newMCQEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) *mcqEvaluator {
	e := &mcqEvaluator{base: newBase(step, emit, sounds, review, saved)}
	if saved != nil {
		e.selected = saved.Answer.SelectedOptionID
	}
	return e
}

func (e *mcqEvaluator) activate() {
	if e.evaluated {
		e.report(true, e.answer())
	}
}

func (e *mcqEvaluator) apply(ev Event) error {
	if ev.Kind != EventSelect {
		return fmt.Errorf("step %s: event %q not valid for mcq", e.step.ID, ev.Kind)
	}
	opt := e.option(ev.OptionID)
	if opt == nil {
		return fmt.Errorf("step %s: unknown option %q", e.step.ID, ev.OptionID)
	}
	if e.locked() {
		return nil
	}
	e.reopen()
	e.selected = opt.ID

	if !e.step.FullScreen {
		e.grade(e.verdict(opt.IsCorrect), e.answer())
		return nil
	}
	e.report(true, e.answer())
	return nil
}

func (e *mcqEvaluator) trigger() {
	if e.selected == "" || e.evaluated || !e.step.FullScreen {
		return
	}
	opt := e.option(e.selected)
	if opt == nil {
		// A saved answer can reference an option that no longer exists.
		return
	}
	e.grade(e.verdict(opt.IsCorrect), e.answer())
}

func (e *mcqEvaluator) option(id string) *Option {
	for i := range e.step.Options {
		if e.step.Options[i].ID == id {
			return &e.step.Options[i]
		}
	}
	return nil
}

func (e *mcqEvaluator) answer() AnswerState {
	return AnswerState{SelectedOptionID: e.selected}
}

func (e *mcqEvaluator) state() phase {
	switch {
	case e.evaluated:
		return phaseEvaluated
	case e.selected != "":
		return phaseAnswerable
	}
	return phaseUnanswered
}
