package engine

import "fmt"

// matchEvaluator handles match steps. Pairing a left item to a right item
// forms or replaces an assignment; the step grades itself exactly once, the
// moment the last unassigned left item receives a right item. There is no
// explicit check action.
type matchEvaluator struct {
	base
	matches map[string]string // leftID -> rightID
}

func newMatchEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) *matchEvaluator {
	e := &matchEvaluator{
		base:    newBase(step, emit, sounds, review, saved),
		matches: make(map[string]string, len(step.LeftItems)),
	}
	if saved != nil {
		for l, r := range saved.Answer.Matches {
			e.matches[l] = r
		}
	}
	return e
}

func (e *matchEvaluator) activate() {
	if e.evaluated {
		e.report(true, e.answer())
	}
}

func (e *matchEvaluator) apply(ev Event) error {
	if ev.Kind != EventPair {
		return fmt.Errorf("step %s: event %q not valid for match", e.step.ID, ev.Kind)
	}
	if !hasMatchItem(e.step.LeftItems, ev.LeftID) {
		return fmt.Errorf("step %s: unknown left item %q", e.step.ID, ev.LeftID)
	}
	if !hasMatchItem(e.step.RightItems, ev.RightID) {
		return fmt.Errorf("step %s: unknown right item %q", e.step.ID, ev.RightID)
	}
	if e.locked() {
		return nil
	}
	e.reopen()
	e.matches[ev.LeftID] = ev.RightID

	if len(e.matches) == len(e.step.LeftItems) {
		e.grade(e.verdict(e.allPairsCorrect()), e.answer())
		return nil
	}
	e.report(false, e.answer())
	return nil
}

// trigger is a no-op: match grades automatically on the final pairing.
func (e *matchEvaluator) trigger() {}

func (e *matchEvaluator) allPairsCorrect() bool {
	for l, r := range e.matches {
		if !e.step.PairIsCorrect(l, r) {
			return false
		}
	}
	return true
}

func (e *matchEvaluator) answer() AnswerState {
	m := make(map[string]string, len(e.matches))
	for l, r := range e.matches {
		m[l] = r
	}
	return AnswerState{Matches: m}
}

func (e *matchEvaluator) state() phase {
	switch {
	case e.evaluated:
		return phaseEvaluated
	case len(e.matches) > 0:
		return phaseAnswerable
	}
	return phaseUnanswered
}

func hasMatchItem(items []MatchItem, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
