// internal/workflow/conditions_test.go
package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/vars"
)

func TestEvalCondition(t *testing.T) {
	bindings := vars.Bindings{
		"status": vars.String("logged_in"),
		"count":  vars.Number(3),
	}

	tests := []struct {
		name string
		cond schemas.Condition
		want bool
	}{
		{"equals true", schemas.Condition{Variable: "status", Op: schemas.OpEquals, Value: "logged_in"}, true},
		{"equals false", schemas.Condition{Variable: "status", Op: schemas.OpEquals, Value: "logged_out"}, false},
		{"not equals", schemas.Condition{Variable: "status", Op: schemas.OpNotEquals, Value: "logged_out"}, true},
		{"contains", schemas.Condition{Variable: "status", Op: schemas.OpContains, Value: "logged"}, true},
		{"contains false", schemas.Condition{Variable: "status", Op: schemas.OpContains, Value: "guest"}, false},
		{"exists bound", schemas.Condition{Variable: "count", Op: schemas.OpExists}, true},
		{"exists unbound", schemas.Condition{Variable: "missing", Op: schemas.OpExists}, false},
		{"number renders for comparison", schemas.Condition{Variable: "count", Op: schemas.OpEquals, Value: "3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalCondition(tt.cond, bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalConditionErrors(t *testing.T) {
	tests := []struct {
		name string
		cond schemas.Condition
	}{
		{"unbound variable in comparison", schemas.Condition{Variable: "missing", Op: schemas.OpEquals, Value: "x"}},
		{"unknown operator", schemas.Condition{Variable: "status", Op: ">", Value: "x"}},
		{"empty variable", schemas.Condition{Op: schemas.OpExists}},
	}
	bindings := vars.Bindings{"status": vars.String("ok")}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvalCondition(tt.cond, bindings)
			require.Error(t, err)
			var evalErr *ConditionEvaluationError
			assert.True(t, errors.As(err, &evalErr))
		})
	}
}
