package schemas

// -- Intent Schemas --

// ActionKind identifies the kind of page interaction an instruction asks for.
type ActionKind string

const (
	ActionNavigate   ActionKind = "navigate"
	ActionClick      ActionKind = "click"
	ActionType       ActionKind = "type"
	ActionSelect     ActionKind = "select"
	ActionExtract    ActionKind = "extract"
	ActionWait       ActionKind = "wait"
	ActionScroll     ActionKind = "scroll"
	ActionScreenshot ActionKind = "screenshot"
	// ActionInteract is the generic fallback when no instruction pattern matches.
	ActionInteract ActionKind = "interact"
)

// ContextFlag marks a domain hint derived from the whole instruction text.
type ContextFlag string

const (
	FlagLogin    ContextFlag = "login"
	FlagSearch   ContextFlag = "search"
	FlagForm     ContextFlag = "form"
	FlagSubmit   ContextFlag = "submit"
	FlagTravel   ContextFlag = "travel"
	FlagShopping ContextFlag = "shopping"
	FlagPayment  ContextFlag = "payment"
)

// IntentDescriptor is the normalized representation of one instruction.
// It is immutable once produced by the normalizer.
type IntentDescriptor struct {
	Kind              ActionKind           `json:"kind"`
	TargetDescription string               `json:"target_description"`
	ContextFlags      map[ContextFlag]bool `json:"context_flags,omitempty"`
}

// HasFlag reports whether the descriptor carries the given context flag.
func (d IntentDescriptor) HasFlag(f ContextFlag) bool {
	return d.ContextFlags[f]
}

// RecordedEvent is a structured instruction captured by an external recorder,
// an alternative input to free-text instructions.
type RecordedEvent struct {
	Kind     ActionKind `json:"kind"`
	Selector string     `json:"selector,omitempty"`
	Label    string     `json:"label,omitempty"`
	Text     string     `json:"text,omitempty"`
	URL      string     `json:"url,omitempty"`
}
