package engine

import (
	"fmt"
	"slices"
)

// multiSelectEvaluator handles multi-select steps. Selection never grades;
// the trigger compares the selected set against the correct set. Supersets
// and subsets of the correct set are both wrong.
type multiSelectEvaluator struct {
	base
	selected []string
}

func newMultiSelectEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) *multiSelectEvaluator {
	e := &multiSelectEvaluator{base: newBase(step, emit, sounds, review, saved)}
	if saved != nil {
		e.selected = slices.Clone(saved.Answer.SelectedOptionIDs)
	}
	return e
}

func (e *multiSelectEvaluator) activate() {
	if e.evaluated {
		e.report(true, e.answer())
	}
}

func (e *multiSelectEvaluator) apply(ev Event) error {
	if ev.Kind != EventToggle {
		return fmt.Errorf("step %s: event %q not valid for multi_select", e.step.ID, ev.Kind)
	}
	if !e.hasOption(ev.OptionID) {
		return fmt.Errorf("step %s: unknown option %q", e.step.ID, ev.OptionID)
	}
	if e.locked() {
		return nil
	}
	e.reopen()
	if i := slices.Index(e.selected, ev.OptionID); i >= 0 {
		e.selected = slices.Delete(e.selected, i, i+1)
	} else {
		e.selected = append(e.selected, ev.OptionID)
	}
	e.report(len(e.selected) > 0, e.answer())
	return nil
}

func (e *multiSelectEvaluator) trigger() {
	if len(e.selected) == 0 || e.evaluated {
		return
	}
	correct := e.step.correctOptionIDs()
	ok := len(e.selected) == len(correct)
	for _, id := range e.selected {
		if !correct[id] {
			ok = false
			break
		}
	}
	e.grade(e.verdict(ok), e.answer())
}

func (e *multiSelectEvaluator) hasOption(id string) bool {
	for _, o := range e.step.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

func (e *multiSelectEvaluator) answer() AnswerState {
	return AnswerState{SelectedOptionIDs: slices.Clone(e.selected)}
}

func (e *multiSelectEvaluator) state() phase {
	switch {
	case e.evaluated:
		return phaseEvaluated
	case len(e.selected) > 0:
		return phaseAnswerable
	}
	return phaseUnanswered
}
