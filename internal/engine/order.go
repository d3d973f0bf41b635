package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// orderEvaluator handles order steps. The initial arrangement is a shuffle
// guarded against accidentally presenting the solved order. Grading on the
// trigger is non-blocking: an incorrect arrangement still completes the step.
type orderEvaluator struct {
	base
	order []string
}

func newOrderEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) *orderEvaluator {
	e := &orderEvaluator{base: newBase(step, emit, sounds, review, saved)}
	if saved != nil && len(saved.Answer.OrderedItemIDs) == len(step.Items) {
		e.order = slices.Clone(saved.Answer.OrderedItemIDs)
	} else {
		e.order = shuffledOrder(step.Items)
	}
	return e
}

// shuffledOrder shuffles the authored items, re-shuffling while the result
// happens to equal the solved order so the learner never gets a free win.
func shuffledOrder(items []OrderItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if len(items) < 2 {
		return ids
	}
	for {
		rand.Shuffle(len(ids), func(i, j int) {
			ids[i], ids[j] = ids[j], ids[i]
		})
		if !orderIsCorrect(items, ids) {
			return ids
		}
	}
}

// orderIsCorrect reports whether ids matches every item's CorrectOrder.
func orderIsCorrect(items []OrderItem, ids []string) bool {
	pos := make(map[string]int, len(items))
	for _, it := range items {
		pos[it.ID] = it.CorrectOrder
	}
	for i, id := range ids {
		if pos[id] != i+1 {
			return false
		}
	}
	return true
}

func (e *orderEvaluator) activate() {
	if e.evaluated {
		e.report(true, e.answer())
		return
	}
	// Any arrangement is an answer, so the check control is live immediately.
	e.report(true, e.answer())
}

func (e *orderEvaluator) apply(ev Event) error {
	switch ev.Kind {
	case EventMove:
		return e.move(ev.ItemID, ev.Delta)
	case EventSetOrder:
		return e.setOrder(ev.Order)
	}
	return fmt.Errorf("step %s: event %q not valid for order", e.step.ID, ev.Kind)
}

func (e *orderEvaluator) move(itemID string, delta int) error {
	i := slices.Index(e.order, itemID)
	if i < 0 {
		return fmt.Errorf("step %s: unknown item %q", e.step.ID, itemID)
	}
	if e.locked() {
		return nil
	}
	e.reopen()
	j := i + delta
	if j < 0 {
		j = 0
	}
	if j > len(e.order)-1 {
		j = len(e.order) - 1
	}
	if i != j {
		id := e.order[i]
		e.order = slices.Delete(e.order, i, i+1)
		e.order = slices.Insert(e.order, j, id)
	}
	e.report(true, e.answer())
	return nil
}

func (e *orderEvaluator) setOrder(order []string) error {
	if len(order) != len(e.order) {
		return fmt.Errorf("step %s: order has %d items, want %d", e.step.ID, len(order), len(e.order))
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if slices.Index(e.order, id) < 0 {
			return fmt.Errorf("step %s: unknown item %q", e.step.ID, id)
		}
		if seen[id] {
			return fmt.Errorf("step %s: duplicate item %q", e.step.ID, id)
		}
		seen[id] = true
	}
	if e.locked() {
		return nil
	}
	e.reopen()
	e.order = slices.Clone(order)
	e.report(true, e.answer())
	return nil
}

func (e *orderEvaluator) trigger() {
	if e.evaluated {
		return
	}
	e.grade(e.verdict(orderIsCorrect(e.step.Items, e.order)), e.answer())
}

func (e *orderEvaluator) answer() AnswerState {
	return AnswerState{OrderedItemIDs: slices.Clone(e.order)}
}

func (e *orderEvaluator) state() phase {
	if e.evaluated {
		return phaseEvaluated
	}
	return phaseAnswerable
}
