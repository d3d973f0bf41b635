package engine

import "fmt"

// trueFalseEvaluator handles true/false steps, symmetric to mcq: inline
// grades on click, full-screen waits for the trigger.
type trueFalseEvaluator struct {
	base
	selected *bool
}

func newTrueFalseEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) *trueFalseEvaluator {
	e := &trueFalseEvaluator{base: newBase(step, emit, sounds, review, saved)}
	if saved != nil {
		e.selected = saved.Answer.SelectedValue
	}
	return e
}

func (e *trueFalseEvaluator) activate() {
	if e.evaluated {
		e.report(true, e.answer())
	}
}

func (e *trueFalseEvaluator) apply(ev Event) error {
	if ev.Kind != EventSelect {
		return fmt.Errorf("step %s: event %q not valid for true_false", e.step.ID, ev.Kind)
	}
	if ev.Value == nil {
		return fmt.Errorf("step %s: select event has no value", e.step.ID)
	}
	if e.locked() {
		return nil
	}
	e.reopen()
	v := *ev.Value
	e.selected = &v

	if !e.step.FullScreen {
		e.grade(e.verdict(v == e.step.CorrectValue), e.answer())
		return nil
	}
	e.report(true, e.answer())
	return nil
}

func (e *trueFalseEvaluator) trigger() {
	if e.selected == nil || e.evaluated || !e.step.FullScreen {
		return
	}
	e.grade(e.verdict(*e.selected == e.step.CorrectValue), e.answer())
}

func (e *trueFalseEvaluator) answer() AnswerState {
	return AnswerState{SelectedValue: e.selected}
}

func (e *trueFalseEvaluator) state() phase {
	switch {
	case e.evaluated:
		return phaseEvaluated
	case e.selected != nil:
		return phaseAnswerable
	}
	return phaseUnanswered
}
