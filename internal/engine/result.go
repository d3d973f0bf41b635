package engine

// Result is what an evaluator reports back to its host after activation,
// after every selection change, and once on grading.
type Result struct {
	// Completed means the step no longer gates advancing.
	Completed bool `json:"completed"`
	// Correct is nil until graded, and stays nil for non-graded steps.
	Correct *bool `json:"correct,omitempty"`
	// CanAction tells the host whether its check/continue control should be
	// enabled for the current selection state.
	CanAction bool `json:"can_action"`
	// Answer is the selection state that produced this result.
	Answer AnswerState `json:"answer"`
}

// AnswerState holds a step's user-entered selection. Only the fields relevant
// to the step's variant are populated. It round-trips through persistence so
// attempts can resume mid-lesson.
type AnswerState struct {
	SelectedOptionID  string            `json:"selected_option_id,omitempty"`
	SelectedOptionIDs []string          `json:"selected_option_ids,omitempty"`
	SelectedValue     *bool             `json:"selected_value,omitempty"`
	OrderedItemIDs    []string          `json:"ordered_item_ids,omitempty"`
	Matches           map[string]string `json:"matches,omitempty"`
}

// SavedState restores a previously active step: its answer plus whether it
// had already been graded.
type SavedState struct {
	Answer    AnswerState
	Completed bool
	Correct   *bool
}

// EventKind names a user interaction delivered to the active step.
type EventKind string

const (
	// EventSelect picks a single option (mcq) or boolean value (true_false).
	EventSelect EventKind = "select"
	// EventToggle flips one option in a multi_select step.
	EventToggle EventKind = "toggle"
	// EventMove shifts an order item up or down by Delta positions.
	EventMove EventKind = "move"
	// EventSetOrder replaces the whole item order (drag and drop).
	EventSetOrder EventKind = "set_order"
	// EventPair assigns a right item to a left item in a match step.
	EventPair EventKind = "pair"
)

// Event is one user interaction. Fields beyond Kind are variant-specific.
type Event struct {
	Kind     EventKind `json:"kind"`
	OptionID string    `json:"option_id,omitempty"`
	Value    *bool     `json:"value,omitempty"`
	ItemID   string    `json:"item_id,omitempty"`
	Delta    int       `json:"delta,omitempty"`
	Order    []string  `json:"order,omitempty"`
	LeftID   string    `json:"left_id,omitempty"`
	RightID  string    `json:"right_id,omitempty"`
}

// Sounds plays the two feedback cues. Implementations are fire-and-forget;
// the engine never consumes a return value.
type Sounds interface {
	PlayCorrect()
	PlayIncorrect()
}

// NopSounds discards both cues.
type NopSounds struct{}

func (NopSounds) PlayCorrect()   {}
func (NopSounds) PlayIncorrect() {}

func boolPtr(v bool) *bool { return &v }
