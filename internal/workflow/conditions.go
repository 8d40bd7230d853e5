// internal/workflow/conditions.go
package workflow

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/vars"
)

// ConditionEvaluationError means a step guard could not be evaluated.
// Unlike a guard that evaluates to false (which skips the step), an
// evaluation error fails the step: it indicates a broken definition, not
// a branch not taken.
type ConditionEvaluationError struct {
	Condition schemas.Condition
	Reason    string
}

func (e *ConditionEvaluationError) Error() string {
	return fmt.Sprintf("condition on %q cannot be evaluated: %s", e.Condition.Variable, e.Reason)
}

// EvalCondition evaluates a step guard against the current bindings.
func EvalCondition(cond schemas.Condition, bindings vars.Bindings) (bool, error) {
	if cond.Variable == "" {
		return false, &ConditionEvaluationError{Condition: cond, Reason: "no variable named"}
	}

	value, bound := bindings[cond.Variable]
	if cond.Op == schemas.OpExists {
		return bound, nil
	}
	if !bound {
		return false, &ConditionEvaluationError{Condition: cond, Reason: "variable is not bound"}
	}

	switch cond.Op {
	case schemas.OpEquals:
		return value.Render() == cond.Value, nil
	case schemas.OpNotEquals:
		return value.Render() != cond.Value, nil
	case schemas.OpContains:
		return strings.Contains(value.Render(), cond.Value), nil
	default:
		return false, &ConditionEvaluationError{Condition: cond, Reason: fmt.Sprintf("unknown operator %q", cond.Op)}
	}
}
