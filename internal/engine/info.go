package engine

// infoEvaluator handles info steps. Inline info completes on activation;
// full-screen info waits for the host's reveal action.
type infoEvaluator struct {
	base
	continueEnabled bool
}

func newInfoEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) *infoEvaluator {
	e := &infoEvaluator{base: newBase(step, emit, sounds, review, saved)}
	// Review navigation re-enters with continue pre-enabled.
	e.continueEnabled = review || (saved != nil && saved.Completed)
	return e
}

func (e *infoEvaluator) activate() {
	if !e.step.FullScreen || e.continueEnabled {
		e.grade(nil, AnswerState{})
		return
	}
	e.report(true, AnswerState{})
}

func (e *infoEvaluator) apply(Event) error { return nil }

func (e *infoEvaluator) trigger() {
	if e.evaluated {
		return
	}
	e.grade(nil, AnswerState{})
}

func (e *infoEvaluator) answer() AnswerState { return AnswerState{} }

func (e *infoEvaluator) state() phase {
	if e.evaluated {
		return phaseEvaluated
	}
	return phaseAnswerable
}

// summaryEvaluator handles summary steps: a non-interactive milestone that
// completes exactly once on activation.
type summaryEvaluator struct {
	base
	announced bool
}

func newSummaryEvaluator(step Step, emit func(Result), sounds Sounds, review bool, saved *SavedState) *summaryEvaluator {
	return &summaryEvaluator{base: newBase(step, emit, sounds, review, saved)}
}

func (e *summaryEvaluator) activate() {
	if e.announced {
		return
	}
	e.announced = true
	e.grade(nil, AnswerState{})
}

func (e *summaryEvaluator) apply(Event) error { return nil }
func (e *summaryEvaluator) trigger()          {}

func (e *summaryEvaluator) answer() AnswerState { return AnswerState{} }

func (e *summaryEvaluator) state() phase {
	if e.evaluated {
		return phaseEvaluated
	}
	return phaseAnswerable
}
