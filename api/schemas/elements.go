package schemas

// -- DOM Element Schemas --

// BoundingBox is the on-page rectangle of an element, in CSS pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the box has no visible area.
func (b BoundingBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// RawNode is one DOM node as reported by the browser collaborator.
// Visibility-relevant style and overlay checks are resolved browser-side;
// the extractor only combines them.
type RawNode struct {
	// Ref is an opaque handle into the live page, valid only for the
	// snapshot generation that produced it.
	Ref        string            `json:"ref"`
	TagName    string            `json:"tag_name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Box        BoundingBox       `json:"box"`
	// StyleHidden is true when the computed style hides the node
	// (display:none, visibility:hidden, or opacity 0).
	StyleHidden bool `json:"style_hidden,omitempty"`
	Disabled    bool `json:"disabled,omitempty"`
	// Covered is true when an overlay intercepts pointer events at the
	// node's center, as approximated by the collaborator's z-order check.
	Covered  bool `json:"covered,omitempty"`
	DOMOrder int  `json:"dom_order"`
}

// Candidate is a DOM node considered as a possible target for an action.
// Candidates are valid only within the snapshot that produced them and are
// never cached across navigations.
type Candidate struct {
	Ref        string            `json:"ref"`
	Generation uint64            `json:"generation"`
	TagName    string            `json:"tag_name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Box        BoundingBox       `json:"box"`
	Visible    bool              `json:"visible"`
	// Interactable means visible and not covered by an overlay.
	Interactable bool `json:"interactable"`
	DOMOrder     int  `json:"dom_order"`
	// Priority is the tag/attribute heuristic score, normalized to [0,1].
	Priority float64 `json:"priority"`
}

// Attr returns the named attribute, or "" when absent.
func (c Candidate) Attr(name string) string {
	return c.Attributes[name]
}

// MatchStrategy names the scoring strategy that produced a match.
type MatchStrategy string

const (
	StrategyExact      MatchStrategy = "exact"
	StrategyFuzzy      MatchStrategy = "fuzzy"
	StrategyContext    MatchStrategy = "context"
	StrategyPositional MatchStrategy = "positional"
)

// MatchResult is the outcome of one resolution attempt. It is produced
// fresh per attempt and never persisted.
type MatchResult struct {
	Candidate Candidate     `json:"candidate"`
	Score     float64       `json:"score"`
	Strategy  MatchStrategy `json:"strategy"`
}
