package engine

import (
	"fmt"
	"strings"
)

// StepType discriminates the step variants.
type StepType string

const (
	StepInfo        StepType = "info"
	StepMCQ         StepType = "mcq"
	StepTrueFalse   StepType = "true_false"
	StepMultiSelect StepType = "multi_select"
	StepOrder       StepType = "order"
	StepMatch       StepType = "match"
	StepSummary     StepType = "summary"
)

// ImageAlign positions an optional step illustration.
type ImageAlign string

const (
	ImageLeft  ImageAlign = "left"
	ImageRight ImageAlign = "right"
)

// Option is one answer choice in an mcq or multi_select step.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation,omitempty"`
}

// OrderItem is one entry in an order step. CorrectOrder is 1-based.
type OrderItem struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	CorrectOrder int    `json:"correct_order"`
}

// MatchItem is one entry in a match step column.
type MatchItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Pair links a left item to a right item in a match step.
type Pair struct {
	LeftID  string `json:"left_id"`
	RightID string `json:"right_id"`
}

// Step is one unit of lesson content. It is static authored data; all
// per-activation state lives in the evaluators.
type Step struct {
	ID              string     `json:"id"`
	Type            StepType   `json:"type"`
	Title           string     `json:"title,omitempty"`
	Description     string     `json:"description,omitempty"`
	IsAssessment    bool       `json:"is_assessment,omitempty"`
	RecordIncorrect bool       `json:"record_incorrect,omitempty"`
	ContinueLabel   string     `json:"continue_label,omitempty"`
	FullScreen      bool       `json:"full_screen,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	ImageAlign      ImageAlign `json:"image_align,omitempty"`

	// info, summary
	Body string `json:"body,omitempty"`

	// mcq, multi_select, order
	Question string `json:"question,omitempty"`

	// true_false
	Statement    string `json:"statement,omitempty"`
	CorrectValue bool   `json:"correct_value,omitempty"`
	Explanation  string `json:"explanation,omitempty"`

	// mcq, multi_select
	Options []Option `json:"options,omitempty"`

	// order
	Items []OrderItem `json:"items,omitempty"`

	// match
	LeftItems    []MatchItem `json:"left_items,omitempty"`
	RightItems   []MatchItem `json:"right_items,omitempty"`
	CorrectPairs []Pair      `json:"correct_pairs,omitempty"`
}

// Paragraphs splits the step body on blank lines.
func (s Step) Paragraphs() []string {
	var out []string
	for _, p := range strings.Split(s.Body, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Graded reports whether the step's correctness is meaningful. Steps with
// RecordIncorrect false are reflection prompts: any answer completes them and
// no correct/incorrect verdict is surfaced.
func (s Step) Graded() bool {
	switch s.Type {
	case StepMCQ, StepTrueFalse, StepMultiSelect, StepOrder, StepMatch:
		return s.RecordIncorrect
	}
	return false
}

// PairIsCorrect reports whether leftID→rightID is one of the step's correct
// pairs. Hosts use it to flag individual pairings after a match step grades.
func (s Step) PairIsCorrect(leftID, rightID string) bool {
	for _, p := range s.CorrectPairs {
		if p.LeftID == leftID && p.RightID == rightID {
			return true
		}
	}
	return false
}

// correctOptionIDs returns the set of option IDs marked correct.
func (s Step) correctOptionIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, o := range s.Options {
		if o.IsCorrect {
			ids[o.ID] = true
		}
	}
	return ids
}

// Validate checks the authoring invariants for a single step. Content errors
// surface here, at load time, never during evaluation.
func (s Step) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("step has no id")
	}
	switch s.Type {
	case StepInfo:
		if s.Body == "" {
			return fmt.Errorf("step %s: info step has no body", s.ID)
		}
	case StepSummary:
		if s.Title == "" && s.Body == "" {
			return fmt.Errorf("step %s: summary step has no title or body", s.ID)
		}
	case StepMCQ, StepMultiSelect:
		return s.validateOptions()
	case StepTrueFalse:
		if s.Statement == "" {
			return fmt.Errorf("step %s: true_false step has no statement", s.ID)
		}
	case StepOrder:
		return s.validateOrder()
	case StepMatch:
		return s.validateMatch()
	default:
		return fmt.Errorf("step %s: unknown step type %q", s.ID, s.Type)
	}
	return nil
}

func (s Step) validateOptions() error {
	if len(s.Options) < 2 {
		return fmt.Errorf("step %s: needs at least 2 options, has %d", s.ID, len(s.Options))
	}
	seen := make(map[string]bool, len(s.Options))
	correct := 0
	for _, o := range s.Options {
		if o.ID == "" {
			return fmt.Errorf("step %s: option has no id", s.ID)
		}
		if seen[o.ID] {
			return fmt.Errorf("step %s: duplicate option id %q", s.ID, o.ID)
		}
		seen[o.ID] = true
		if o.IsCorrect {
			correct++
		}
	}
	// Non-graded reflection steps may mark every option correct, or none.
	if correct == 0 && s.RecordIncorrect {
		return fmt.Errorf("step %s: graded step has no correct option", s.ID)
	}
	return nil
}

func (s Step) validateOrder() error {
	n := len(s.Items)
	if n < 2 {
		return fmt.Errorf("step %s: order step needs at least 2 items, has %d", s.ID, n)
	}
	seenID := make(map[string]bool, n)
	seenPos := make(map[int]bool, n)
	for _, it := range s.Items {
		if it.ID == "" {
			return fmt.Errorf("step %s: order item has no id", s.ID)
		}
		if seenID[it.ID] {
			return fmt.Errorf("step %s: duplicate order item id %q", s.ID, it.ID)
		}
		seenID[it.ID] = true
		if it.CorrectOrder < 1 || it.CorrectOrder > n {
			return fmt.Errorf("step %s: item %q correct_order %d out of range 1..%d", s.ID, it.ID, it.CorrectOrder, n)
		}
		if seenPos[it.CorrectOrder] {
			return fmt.Errorf("step %s: duplicate correct_order %d", s.ID, it.CorrectOrder)
		}
		seenPos[it.CorrectOrder] = true
	}
	return nil
}

func (s Step) validateMatch() error {
	if len(s.LeftItems) == 0 || len(s.RightItems) == 0 {
		return fmt.Errorf("step %s: match step needs left and right items", s.ID)
	}
	left := make(map[string]bool, len(s.LeftItems))
	for _, it := range s.LeftItems {
		if it.ID == "" {
			return fmt.Errorf("step %s: left item has no id", s.ID)
		}
		if left[it.ID] {
			return fmt.Errorf("step %s: duplicate left item id %q", s.ID, it.ID)
		}
		left[it.ID] = true
	}
	right := make(map[string]bool, len(s.RightItems))
	for _, it := range s.RightItems {
		if it.ID == "" {
			return fmt.Errorf("step %s: right item has no id", s.ID)
		}
		if right[it.ID] {
			return fmt.Errorf("step %s: duplicate right item id %q", s.ID, it.ID)
		}
		right[it.ID] = true
	}
	paired := make(map[string]bool, len(s.CorrectPairs))
	for _, p := range s.CorrectPairs {
		if !left[p.LeftID] {
			return fmt.Errorf("step %s: correct pair references unknown left id %q", s.ID, p.LeftID)
		}
		if !right[p.RightID] {
			return fmt.Errorf("step %s: correct pair references unknown right id %q", s.ID, p.RightID)
		}
		if paired[p.LeftID] {
			return fmt.Errorf("step %s: left id %q appears in multiple correct pairs", s.ID, p.LeftID)
		}
		paired[p.LeftID] = true
	}
	for id := range left {
		if !paired[id] {
			return fmt.Errorf("step %s: left id %q has no correct pair", s.ID, id)
		}
	}
	return nil
}

// ValidateSteps checks a full lesson step list: every step's own invariants
// plus step ID uniqueness across the lesson.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("lesson has no steps")
	}
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if seen[s.ID] {
			return fmt.Errorf("step %d: duplicate step id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
