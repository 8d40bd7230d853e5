// File: internal/vars/substitute.go
package vars

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// placeholderRe recognizes the four concurrent placeholder syntaxes in a
// single left-to-right sweep. The double-brace form is listed first so it
// is not consumed as a single-brace match.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}|\$\{(\w+)\}|\{(\w+)\}|%(\w+)%`)

// MissingVariablesError lists every unresolved variable name across the
// whole action, each name once, in first-seen order.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing variables: [%s]", strings.Join(e.Names, ", "))
}

// TypeCoercionError reports a field whose substituted value does not
// satisfy the field's declared type. It is distinct from a missing
// variable.
type TypeCoercionError struct {
	Field string
	Value string
	Want  string
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("field %q: value %q is not a valid %s", e.Field, e.Value, e.Want)
}

// Resolve substitutes the bindings into the action's template fields and
// returns a new action with Resolved populated. The input action is never
// mutated, so the same template can be re-resolved with different
// bindings. All missing variables are collected before failing.
func Resolve(action schemas.Action, bindings Bindings) (schemas.Action, error) {
	if err := action.Validate(); err != nil {
		return schemas.Action{}, err
	}

	keys, templates := action.Templates()

	var missing []string
	seen := make(map[string]bool)
	resolved := make(map[string]string, len(keys))

	for _, key := range keys {
		resolved[key] = placeholderRe.ReplaceAllStringFunc(templates[key], func(m string) string {
			name := placeholderName(m)
			value, ok := bindings[name]
			if !ok {
				if !seen[name] {
					seen[name] = true
					missing = append(missing, name)
				}
				return m
			}
			return value.Render()
		})
	}

	if len(missing) > 0 {
		return schemas.Action{}, &MissingVariablesError{Names: missing}
	}

	payload := &schemas.ResolvedPayload{
		Target: resolved["target"],
		URL:    resolved["url"],
		Text:   resolved["text"],
		Value:  resolved["value"],
	}

	// Typed fields are validated after substitution; a bound value of the
	// wrong shape is a coercion error, not a missing variable.
	if raw := resolved["wait_ms"]; raw != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || ms < 0 {
			return schemas.Action{}, &TypeCoercionError{Field: "wait_ms", Value: raw, Want: "non-negative integer"}
		}
		payload.WaitMs = ms
	}
	if raw := resolved["date"]; raw != "" {
		if _, err := time.Parse(DateLayout, strings.TrimSpace(raw)); err != nil {
			return schemas.Action{}, &TypeCoercionError{Field: "date", Value: raw, Want: "date (" + DateLayout + ")"}
		}
		payload.Date = strings.TrimSpace(raw)
	}

	out := action
	out.Resolved = payload
	return out, nil
}

// placeholderName extracts the variable name from a matched placeholder,
// whichever syntax produced it.
func placeholderName(m string) string {
	groups := placeholderRe.FindStringSubmatch(m)
	for _, g := range groups[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// Referenced returns the distinct variable names referenced by the
// action's templates, in first-seen order. Used by workflow validation.
func Referenced(action schemas.Action) []string {
	keys, templates := action.Templates()
	var names []string
	seen := make(map[string]bool)
	for _, key := range keys {
		for _, m := range placeholderRe.FindAllString(templates[key], -1) {
			if name := placeholderName(m); name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
