// internal/executor/errors.go
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser"
)

// ErrorKind classifies an attempt failure. The kind selects the recovery
// action taken between retries.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindTargetObscured    ErrorKind = "target_obscured"
	KindNavigationFailure ErrorKind = "navigation_failure"
	KindOther             ErrorKind = "other"
)

// Classify maps a failure to its error kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, browser.ErrObscured):
		return KindTargetObscured
	case errors.Is(err, browser.ErrNavigation):
		return KindNavigationFailure
	default:
		return KindOther
	}
}

// StepExecutionError is the terminal failure of a step after all retries
// are exhausted. It carries the full attempt history so callers can see
// every strategy that was tried.
type StepExecutionError struct {
	Kind     ErrorKind
	Attempts []schemas.AttemptInfo
	last     error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step failed after %d attempts (%s): %v", len(e.Attempts), e.Kind, e.last)
}

func (e *StepExecutionError) Unwrap() error {
	return e.last
}
