package schemas

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// -- Workflow Definition Schemas --

// Action describes one page interaction. The string fields are templates
// that may contain variable placeholders; Resolved is populated only after
// substitution and is never serialized with the definition.
type Action struct {
	Kind ActionKind `json:"kind"`
	// Target is the natural-language description of the element to act on.
	Target string `json:"target,omitempty"`
	URL    string `json:"url,omitempty"`
	Text   string `json:"text,omitempty"`
	Value  string `json:"value,omitempty"`
	// WaitMs is a number-typed template; it must resolve to a non-negative
	// integer count of milliseconds.
	WaitMs string `json:"wait_ms,omitempty"`
	// Date is a date-typed template; it must resolve to YYYY-MM-DD.
	Date string `json:"date,omitempty"`
	// ExtractInto names the variable that receives an extract action's result.
	ExtractInto string `json:"extract_into,omitempty"`

	Resolved *ResolvedPayload `json:"-"`
}

// ResolvedPayload holds the action fields after variable substitution and
// type coercion.
type ResolvedPayload struct {
	Target string
	URL    string
	Text   string
	Value  string
	WaitMs int
	Date   string
}

// Templates returns the action's placeholder-bearing fields keyed by field
// name, in a fixed order via the returned key slice.
func (a Action) Templates() ([]string, map[string]string) {
	keys := []string{"target", "url", "text", "value", "wait_ms", "date"}
	return keys, map[string]string{
		"target":  a.Target,
		"url":     a.URL,
		"text":    a.Text,
		"value":   a.Value,
		"wait_ms": a.WaitMs,
		"date":    a.Date,
	}
}

// NeedsTarget reports whether this action kind acts on a resolved element.
func (a Action) NeedsTarget() bool {
	switch a.Kind {
	case ActionNavigate, ActionWait, ActionScreenshot:
		return false
	case ActionScroll:
		// Scroll targets an element when described, otherwise the viewport.
		return a.Target != ""
	default:
		return true
	}
}

// Validate checks the per-kind required fields of the tagged variant.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action requires url")
		}
	case ActionClick, ActionExtract:
		if a.Target == "" {
			return fmt.Errorf("%s action requires target", a.Kind)
		}
	case ActionType:
		if a.Target == "" || a.Text == "" {
			return fmt.Errorf("type action requires target and text")
		}
	case ActionSelect:
		if a.Target == "" || a.Value == "" {
			return fmt.Errorf("select action requires target and value")
		}
	case ActionWait:
		if a.WaitMs == "" {
			return fmt.Errorf("wait action requires wait_ms")
		}
	case ActionScroll, ActionScreenshot, ActionInteract:
		// No required fields.
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// RetryPolicy controls the step executor's retry loop for one step.
type RetryPolicy struct {
	MaxRetries  int           `json:"max_retries"`
	BackoffBase time.Duration `json:"backoff_base"`
}

// DefaultRetryPolicy matches the engine defaults: three attempts with a
// two second backoff base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BackoffBase: 2 * time.Second}
}

// ConditionOp is the comparison operator of a step condition.
type ConditionOp string

const (
	OpEquals    ConditionOp = "=="
	OpNotEquals ConditionOp = "!="
	OpContains  ConditionOp = "contains"
	OpExists    ConditionOp = "exists"
)

// Condition is a predicate over the execution context's variables,
// evaluated immediately before the guarded step runs.
type Condition struct {
	Variable string      `json:"variable"`
	Op       ConditionOp `json:"op"`
	Value    string      `json:"value,omitempty"`
}

// LoopSpec re-runs a step's children while a predicate holds or over a
// bound collection variable.
type LoopSpec struct {
	// While, when set, is re-evaluated before each iteration.
	While *Condition `json:"while,omitempty"`
	// Over names a variable holding a delimited collection; each item is
	// bound to ItemVar for the iteration.
	Over    string `json:"over,omitempty"`
	ItemVar string `json:"item_var,omitempty"`
	// MaxIterations bounds while-loops. Zero means the engine default.
	MaxIterations int `json:"max_iterations,omitempty"`
}

// ParallelSpec runs a step's children as independent tasks bounded by a
// concurrency limit. Each child sees an isolated copy of the variables,
// merged back on success with last-writer-wins on key collision.
type ParallelSpec struct {
	MaxConcurrency int `json:"max_concurrency,omitempty"`
}

// Step is one node of the workflow tree. A step either carries an action,
// or is a control step whose children form a loop body, parallel group, or
// plain nested sequence.
type Step struct {
	ID        string        `json:"id"`
	Action    *Action       `json:"action,omitempty"`
	Retry     *RetryPolicy  `json:"retry,omitempty"`
	Condition *Condition    `json:"condition,omitempty"`
	Loop      *LoopSpec     `json:"loop,omitempty"`
	Parallel  *ParallelSpec `json:"parallel,omitempty"`
	// ContinueOnError absorbs a child/action failure instead of failing
	// the whole workflow.
	ContinueOnError bool   `json:"continue_on_error,omitempty"`
	Children        []Step `json:"children,omitempty"`
}

// WorkflowDefinition is the immutable, serializable workflow tree.
type WorkflowDefinition struct {
	Name    string        `json:"name"`
	Steps   []Step        `json:"steps"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// WorkflowState enumerates the lifecycle states of a running workflow.
type WorkflowState string

const (
	StatePending   WorkflowState = "pending"
	StateRunning   WorkflowState = "running"
	StatePaused    WorkflowState = "paused"
	StateCompleted WorkflowState = "completed"
	StateFailed    WorkflowState = "failed"
	StateStopped   WorkflowState = "stopped"
)

// Terminal reports whether the state admits no further transitions.
func (s WorkflowState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateStopped:
		return true
	}
	return false
}

// -- Step Paths --

// StepPath addresses a step in the workflow tree by child indexes, with
// loop iterations encoded as a third coordinate where applicable, e.g.
// "2.0" is the first child of the third top-level step.
type StepPath []int

// String renders the path in dotted form; the empty path renders as "".
func (p StepPath) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Child returns a new path extended by one index. The receiver is copied,
// so held paths remain stable as traversal descends.
func (p StepPath) Child(i int) StepPath {
	next := make(StepPath, len(p), len(p)+1)
	copy(next, p)
	return append(next, i)
}

// ParseStepPath parses the dotted form produced by String.
func ParseStepPath(s string) (StepPath, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	path := make(StepPath, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid step path %q", s)
		}
		path[i] = n
	}
	return path, nil
}
