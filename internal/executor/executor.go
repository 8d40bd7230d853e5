// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// EmitFunc receives progress events. A nil emitter drops them.
type EmitFunc func(schemas.Event)

// ErrHalted is returned when the halt signal interrupts the retry loop.
var ErrHalted = errors.New("execution halted")

// Executor runs a single resolved action against the browser with retries,
// per-kind fallback strategies, and classified recovery between attempts.
type Executor struct {
	logger      *zap.Logger
	collab      browser.Collaborator
	maxRetries  int
	backoffBase time.Duration
	emit        EmitFunc

	// halt, when set, is polled alongside context cancellation; a true
	// result abandons the retry loop with ErrHalted.
	halt func() bool

	// sleep is injectable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New builds an Executor from config. emit may be nil.
func New(cfg config.ExecutorConfig, collab browser.Collaborator, logger *zap.Logger, emit EmitFunc) *Executor {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	return &Executor{
		logger:      logger.Named("executor"),
		collab:      collab,
		maxRetries:  maxRetries,
		backoffBase: base,
		emit:        emit,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

// WithPolicy returns a copy of the executor with a per-step retry policy
// overlaid on the defaults. Zero fields keep the configured values.
func (e *Executor) WithPolicy(p schemas.RetryPolicy) *Executor {
	c := *e
	if p.MaxRetries > 0 {
		c.maxRetries = p.MaxRetries
	}
	if p.BackoffBase > 0 {
		c.backoffBase = p.BackoffBase
	}
	return &c
}

// WithHalt returns a copy of the executor that checks f between strategy
// rungs and retry attempts, so an operator stop interrupts a failing step
// instead of riding out its remaining retries.
func (e *Executor) WithHalt(f func() bool) *Executor {
	c := *e
	c.halt = f
	return &c
}

func (e *Executor) halted() bool { return e.halt != nil && e.halt() }

// strategy is one rung of an action's fallback ladder.
type strategy struct {
	name string
	mode browser.DispatchMode
}

// strategiesFor returns the ordered fallback ladder for an action kind.
// The first rung that completes without error wins the attempt.
func strategiesFor(kind schemas.ActionKind) []strategy {
	switch kind {
	case schemas.ActionClick, schemas.ActionInteract:
		return []strategy{
			{"direct_dispatch", browser.ModeDirect},
			{"script_click", browser.ModeScript},
			{"focus_enter", browser.ModeKeyboard},
		}
	case schemas.ActionType:
		return []strategy{
			{"direct_keys", browser.ModeDirect},
			{"script_set_value", browser.ModeScript},
			{"char_by_char", browser.ModeKeyboard},
		}
	case schemas.ActionSelect:
		return []strategy{
			{"direct_select", browser.ModeDirect},
			{"script_select", browser.ModeScript},
		}
	case schemas.ActionExtract:
		return []strategy{{"harvest_text", browser.ModeDirect}}
	case schemas.ActionScroll:
		return []strategy{{"scroll_into_view", browser.ModeDirect}}
	case schemas.ActionNavigate:
		return []strategy{{"navigate", browser.ModeDirect}}
	case schemas.ActionWait:
		return []strategy{{"wait", browser.ModeDirect}}
	case schemas.ActionScreenshot:
		return []strategy{{"screenshot", browser.ModeDirect}}
	default:
		return nil
	}
}

// Run executes the action, retrying up to maxRetries times after an
// initial failed attempt. The action must
// already be resolved (Resolved non-nil). Element-targeting kinds require
// a target. For extract actions the harvested text is returned.
//
// Cancellation and the halt signal are honored between rungs and between
// retry attempts; an in-flight collaborator call is never aborted
// mid-dispatch.
func (e *Executor) Run(ctx context.Context, runID string, stepPath schemas.StepPath, stepID string, action schemas.Action, target *browser.Target) (string, error) {
	if action.Resolved == nil {
		return "", fmt.Errorf("action %q has no resolved payload", action.Kind)
	}
	if action.NeedsTarget() && target == nil {
		return "", fmt.Errorf("action %q requires a resolved element target", action.Kind)
	}
	ladder := strategiesFor(action.Kind)
	if len(ladder) == 0 {
		return "", fmt.Errorf("unknown action kind %q", action.Kind)
	}

	var history []schemas.AttemptInfo
	var lastErr error

	// maxRetries counts retries after the initial attempt, so a 3-retry
	// policy makes up to 4 tries with backoffs of base, 2x and 3x base
	// between them.
	for attempt := 1; attempt <= e.maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		extracted, ok := "", false
		for _, strat := range ladder {
			if e.halted() {
				return "", ErrHalted
			}
			start := e.now()
			result, err := e.runStrategy(ctx, strat, action, target)
			info := schemas.AttemptInfo{
				Number:   attempt,
				Strategy: strat.name,
				Duration: e.now().Sub(start),
			}
			if err != nil {
				info.Error = err.Error()
				lastErr = err
			}
			history = append(history, info)
			e.emitAttempt(runID, stepPath, stepID, info)

			if err == nil {
				extracted, ok = result, true
				break
			}
			e.logger.Debug("Strategy failed.",
				zap.String("step", stepPath.String()),
				zap.String("strategy", strat.name),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if ok {
			return extracted, nil
		}

		kind := Classify(lastErr)
		if attempt == e.maxRetries+1 {
			return "", &StepExecutionError{Kind: kind, Attempts: history, last: lastErr}
		}

		// A halt issued during the failed attempt must also skip the
		// recovery action: reload or session clearing would mutate the
		// page on a run the operator has already abandoned.
		if e.halted() {
			return "", ErrHalted
		}
		e.recover(ctx, kind, target)

		delay := e.backoffBase * time.Duration(attempt)
		e.logger.Debug("Backing off before retry.",
			zap.String("step", stepPath.String()),
			zap.String("error_kind", string(kind)),
			zap.Duration("delay", delay))
		if err := e.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	// Unreachable: the loop returns on success or at the final attempt.
	return "", &StepExecutionError{Kind: Classify(lastErr), Attempts: history, last: lastErr}
}

func (e *Executor) runStrategy(ctx context.Context, strat strategy, action schemas.Action, target *browser.Target) (string, error) {
	payload := *action.Resolved

	switch action.Kind {
	case schemas.ActionNavigate:
		if err := e.collab.Navigate(ctx, payload.URL); err != nil {
			return "", err
		}
		return "", nil
	case schemas.ActionWait:
		return "", e.sleep(ctx, time.Duration(payload.WaitMs)*time.Millisecond)
	case schemas.ActionScreenshot:
		_, err := e.collab.Screenshot(ctx)
		return "", err
	default:
		return e.collab.Dispatch(ctx, *target, action.Kind, payload, strat.mode)
	}
}

// recover applies the per-kind recovery action between attempts. Recovery
// failures are logged and otherwise ignored; the retry proceeds regardless.
func (e *Executor) recover(ctx context.Context, kind ErrorKind, target *browser.Target) {
	var err error
	switch kind {
	case KindTimeout:
		err = e.collab.Reload(ctx)
	case KindTargetObscured:
		if target != nil {
			err = e.collab.ScrollIntoView(ctx, *target)
		}
	case KindNavigationFailure:
		err = e.collab.ClearSessionState(ctx)
	}
	if err != nil {
		e.logger.Warn("Recovery action failed.",
			zap.String("error_kind", string(kind)),
			zap.Error(err))
	}
}

func (e *Executor) emitAttempt(runID string, stepPath schemas.StepPath, stepID string, info schemas.AttemptInfo) {
	if e.emit == nil {
		return
	}
	e.emit(schemas.Event{
		Type:      schemas.EventAttempt,
		RunID:     runID,
		StepPath:  stepPath.String(),
		StepID:    stepID,
		Attempt:   &info,
		Timestamp: e.now(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
