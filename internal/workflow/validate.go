// internal/workflow/validate.go
package workflow

import (
	"fmt"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// knownOps are the condition operators the evaluator understands.
var knownOps = map[schemas.ConditionOp]bool{
	schemas.OpEquals:    true,
	schemas.OpNotEquals: true,
	schemas.OpContains:  true,
	schemas.OpExists:    true,
}

// Validate statically checks a workflow definition before any browser work
// starts: step shape, per-kind action fields, condition operators, loop and
// parallel structure, and step ID uniqueness.
func Validate(def schemas.WorkflowDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow has no name")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", def.Name)
	}
	seen := make(map[string]string)
	for i, step := range def.Steps {
		if err := validateStep(schemas.StepPath{i}, step, seen); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(path schemas.StepPath, step schemas.Step, seen map[string]string) error {
	at := path.String()

	if step.ID == "" {
		return fmt.Errorf("step %s has no id", at)
	}
	if prev, dup := seen[step.ID]; dup {
		return fmt.Errorf("step %s reuses id %q already used at %s", at, step.ID, prev)
	}
	seen[step.ID] = at

	if step.Loop != nil && step.Parallel != nil {
		return fmt.Errorf("step %s (%s) cannot be both a loop and a parallel group", at, step.ID)
	}
	if (step.Loop != nil || step.Parallel != nil) && len(step.Children) == 0 {
		return fmt.Errorf("step %s (%s) is a control step but has no children", at, step.ID)
	}
	if (step.Loop != nil || step.Parallel != nil) && step.Action != nil {
		return fmt.Errorf("step %s (%s) cannot carry both an action and a control block", at, step.ID)
	}
	if step.Action == nil && len(step.Children) == 0 {
		return fmt.Errorf("step %s (%s) has neither an action nor children", at, step.ID)
	}
	if step.Action != nil && len(step.Children) > 0 {
		return fmt.Errorf("step %s (%s) cannot carry both an action and children", at, step.ID)
	}

	if step.Action != nil {
		if err := step.Action.Validate(); err != nil {
			return fmt.Errorf("step %s (%s): %w", at, step.ID, err)
		}
	}

	if step.Condition != nil {
		if err := validateCondition(*step.Condition); err != nil {
			return fmt.Errorf("step %s (%s): %w", at, step.ID, err)
		}
	}

	if step.Loop != nil {
		l := step.Loop
		if l.While == nil && l.Over == "" {
			return fmt.Errorf("step %s (%s): loop needs a while condition or an over collection", at, step.ID)
		}
		if l.While != nil && l.Over != "" {
			return fmt.Errorf("step %s (%s): loop cannot have both while and over", at, step.ID)
		}
		if l.Over != "" && l.ItemVar == "" {
			return fmt.Errorf("step %s (%s): loop over %q needs item_var", at, step.ID, l.Over)
		}
		if l.While != nil {
			if err := validateCondition(*l.While); err != nil {
				return fmt.Errorf("step %s (%s): %w", at, step.ID, err)
			}
		}
		if l.MaxIterations < 0 {
			return fmt.Errorf("step %s (%s): max_iterations cannot be negative", at, step.ID)
		}
	}

	if step.Parallel != nil && step.Parallel.MaxConcurrency < 0 {
		return fmt.Errorf("step %s (%s): max_concurrency cannot be negative", at, step.ID)
	}

	if step.Retry != nil {
		if step.Retry.MaxRetries < 0 || step.Retry.BackoffBase < 0 {
			return fmt.Errorf("step %s (%s): retry policy fields cannot be negative", at, step.ID)
		}
	}

	for i, child := range step.Children {
		if err := validateStep(path.Child(i), child, seen); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(cond schemas.Condition) error {
	if cond.Variable == "" {
		return fmt.Errorf("condition has no variable")
	}
	if !knownOps[cond.Op] {
		return fmt.Errorf("condition has unknown operator %q", cond.Op)
	}
	if cond.Op != schemas.OpExists && cond.Value == "" {
		return fmt.Errorf("condition %q %s needs a comparison value", cond.Variable, cond.Op)
	}
	return nil
}
