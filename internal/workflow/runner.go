// internal/workflow/runner.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/dom"
	"github.com/xkilldash9x/webpilot/internal/executor"
	"github.com/xkilldash9x/webpilot/internal/intent"
	"github.com/xkilldash9x/webpilot/internal/scoring"
	"github.com/xkilldash9x/webpilot/internal/vars"
)

// errStopped aborts the step walk when a stop was requested. It is
// internal control flow, not a failure; Run maps it to the Stopped state.
var errStopped = errors.New("stop requested")

// ErrGlobalTimeout fails the workflow when the wall-clock budget is spent.
// It is checked at step boundaries only; a step already in flight finishes
// first.
var ErrGlobalTimeout = errors.New("workflow global timeout exceeded")

// ErrLoopCapExceeded fails a while-loop step that reached its iteration
// cap without the predicate turning false.
var ErrLoopCapExceeded = errors.New("loop iteration cap exceeded")

// Status is a point-in-time snapshot of a run.
type Status struct {
	RunID       string
	State       schemas.WorkflowState
	CurrentStep string
	Checkpoint  string
	StopReason  string
	Variables   map[string]string
}

// Runner drives one workflow definition through its lifecycle:
// Pending, Running and Paused, then exactly one of Completed, Failed or
// Stopped. Pause, resume and stop take effect at step boundaries only.
type Runner struct {
	logger *zap.Logger
	cfg    *config.Config
	def    schemas.WorkflowDefinition
	collab browser.Collaborator
	exec   *executor.Executor
	scorer *scoring.Engine
	runID  string

	events chan schemas.Event

	mu          sync.Mutex
	state       schemas.WorkflowState
	bindings    vars.Bindings
	currentPath schemas.StepPath
	checkpoint  schemas.StepPath
	resumeFrom  schemas.StepPath
	pauseReq    bool
	stopReq     bool
	stopReason  string
	resumeCh    chan struct{}
	deadline    time.Time

	now func() time.Time
}

// Option tweaks a Runner at construction time.
type Option func(*Runner)

// WithInitialBindings seeds the execution context's variables.
func WithInitialBindings(b vars.Bindings) Option {
	return func(r *Runner) { r.bindings = b.Clone() }
}

// ResumeFrom restarts a run from the step after the given checkpoint.
// Steps at or before the checkpoint in document order are skipped.
func ResumeFrom(checkpoint schemas.StepPath) Option {
	return func(r *Runner) { r.resumeFrom = checkpoint }
}

// NewRunner builds a runner for one workflow execution. The definition
// must already have passed Validate.
func NewRunner(cfg *config.Config, def schemas.WorkflowDefinition, collab browser.Collaborator, logger *zap.Logger, opts ...Option) *Runner {
	runID := uuid.New().String()

	buffer := cfg.Engine.EventBuffer
	if buffer <= 0 {
		buffer = 256
	}

	r := &Runner{
		logger:   logger.Named("workflow").With(zap.String("run_id", runID), zap.String("workflow", def.Name)),
		cfg:      cfg,
		def:      def,
		collab:   collab,
		scorer:   scoring.NewEngine(cfg.Scoring, logger),
		runID:    runID,
		events:   make(chan schemas.Event, buffer),
		state:    schemas.StatePending,
		bindings: make(vars.Bindings),
		now:      time.Now,
	}
	r.exec = executor.New(cfg.Executor, collab, logger, r.emit).WithHalt(r.stopRequested)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID returns the unique identifier of this execution.
func (r *Runner) RunID() string { return r.runID }

// Events returns the progress stream. The channel is closed when the run
// reaches a terminal state. Consumers are read-only taps; a slow consumer
// causes events to be dropped, never the run to block.
func (r *Runner) Events() <-chan schemas.Event { return r.events }

// Status returns a snapshot of the run.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	rendered := make(map[string]string, len(r.bindings))
	for name, v := range r.bindings {
		rendered[name] = v.Render()
	}
	return Status{
		RunID:       r.runID,
		State:       r.state,
		CurrentStep: r.currentPath.String(),
		Checkpoint:  r.checkpoint.String(),
		StopReason:  r.stopReason,
		Variables:   rendered,
	}
}

// Pause requests suspension at the next step boundary. The in-flight step
// finishes first.
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return fmt.Errorf("cannot pause a %s workflow", r.state)
	}
	r.pauseReq = true
	return nil
}

// Resume wakes a paused run, or clears a not-yet-honored pause request.
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return fmt.Errorf("cannot resume a %s workflow", r.state)
	}
	r.pauseReq = false
	if r.resumeCh != nil {
		close(r.resumeCh)
		r.resumeCh = nil
	}
	return nil
}

// Stop requests termination at the next step boundary, waking the run if
// it is paused. The reason is carried into the final state change event.
func (r *Runner) Stop(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return fmt.Errorf("cannot stop a %s workflow", r.state)
	}
	r.stopReq = true
	r.stopReason = reason
	if r.resumeCh != nil {
		close(r.resumeCh)
		r.resumeCh = nil
	}
	return nil
}

// stopRequested reports a pending stop; the executor polls it so a stop
// interrupts a step's retry loop instead of waiting it out.
func (r *Runner) stopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopReq
}

// Run executes the workflow to a terminal state and returns the failure,
// if any. A stop requested via Stop is a clean outcome, not an error.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state != schemas.StatePending {
		r.mu.Unlock()
		return fmt.Errorf("workflow already started (state %s)", r.state)
	}
	defer close(r.events)
	timeout := r.def.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Engine.GlobalTimeout
	}
	if timeout > 0 {
		r.deadline = r.now().Add(timeout)
	}
	if len(r.resumeFrom) > 0 {
		r.checkpoint = r.resumeFrom
	}
	r.setStateLocked(schemas.StateRunning, "")
	r.mu.Unlock()

	var walkErr error
	for i, step := range r.def.Steps {
		if walkErr = r.executeStep(ctx, schemas.StepPath{i}, step, r.bindings); walkErr != nil {
			break
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case walkErr == nil:
		r.setStateLocked(schemas.StateCompleted, "")
	case errors.Is(walkErr, errStopped):
		r.setStateLocked(schemas.StateStopped, r.stopReason)
		walkErr = nil
	default:
		r.setStateLocked(schemas.StateFailed, walkErr.Error())
	}
	return walkErr
}

// setStateLocked transitions the lifecycle state and emits the change.
// Callers hold r.mu.
func (r *Runner) setStateLocked(next schemas.WorkflowState, reason string) {
	if r.state == next {
		return
	}
	r.logger.Info("Workflow state change.",
		zap.String("from", string(r.state)),
		zap.String("to", string(next)),
		zap.String("reason", reason))
	r.state = next
	r.emit(schemas.Event{
		Type:   schemas.EventStateChange,
		State:  next,
		Reason: reason,
	})
}

// boundary enforces the step-boundary contract: cancellation, stop, the
// global timeout, and pause suspension are all honored here and nowhere
// inside a step.
func (r *Runner) boundary(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.stopReq {
		r.mu.Unlock()
		return errStopped
	}
	if !r.deadline.IsZero() && r.now().After(r.deadline) {
		r.mu.Unlock()
		return ErrGlobalTimeout
	}
	if !r.pauseReq {
		r.mu.Unlock()
		return nil
	}

	r.setStateLocked(schemas.StatePaused, "pause requested")
	// Parallel children can park here concurrently; they must all share
	// one channel so a single Resume or Stop wakes every waiter.
	if r.resumeCh == nil {
		r.resumeCh = make(chan struct{})
	}
	ch := r.resumeCh
	r.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopReq {
		return errStopped
	}
	r.setStateLocked(schemas.StateRunning, "resumed")
	return nil
}

// executeStep runs one node of the step tree against the given bindings.
func (r *Runner) executeStep(ctx context.Context, path schemas.StepPath, step schemas.Step, bindings vars.Bindings) error {
	if r.skipCompleted(path) {
		return nil
	}
	if err := r.boundary(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.currentPath = path
	r.mu.Unlock()

	if step.Condition != nil {
		hold, err := EvalCondition(*step.Condition, bindings)
		if err != nil {
			r.emitStepEnd(path, step, schemas.Outcome{Status: schemas.StepFailed, Error: err.Error()})
			return fmt.Errorf("step %s (%s): %w", path, step.ID, err)
		}
		if !hold {
			r.logger.Debug("Step skipped, condition false.",
				zap.String("step", path.String()), zap.String("step_id", step.ID))
			r.emitStepEnd(path, step, schemas.Outcome{Status: schemas.StepSkipped})
			return nil
		}
	}

	var err error
	switch {
	case step.Loop != nil:
		err = r.runLoop(ctx, path, step, bindings)
	case step.Parallel != nil:
		err = r.runParallel(ctx, path, step, bindings)
	case len(step.Children) > 0:
		err = r.runSequence(ctx, path, step.Children, bindings)
	default:
		err = r.runAction(ctx, path, step, bindings)
	}

	if err != nil {
		// Control signals propagate; they are not step failures.
		if errors.Is(err, errStopped) || errors.Is(err, ErrGlobalTimeout) || errors.Is(err, ctx.Err()) {
			return err
		}
		if step.ContinueOnError {
			r.logger.Warn("Step failed; continuing per definition.",
				zap.String("step", path.String()),
				zap.String("step_id", step.ID),
				zap.Error(err))
			return nil
		}
		return err
	}

	r.mu.Lock()
	r.checkpoint = path
	r.mu.Unlock()
	return nil
}

func (r *Runner) runSequence(ctx context.Context, base schemas.StepPath, steps []schemas.Step, bindings vars.Bindings) error {
	for i, child := range steps {
		if err := r.executeStep(ctx, base.Child(i), child, bindings); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runLoop(ctx context.Context, path schemas.StepPath, step schemas.Step, bindings vars.Bindings) error {
	loop := step.Loop

	if loop.Over != "" {
		collection, bound := bindings[loop.Over]
		if !bound {
			return fmt.Errorf("step %s (%s): loop collection %q is not bound", path, step.ID, loop.Over)
		}
		for i, item := range collection.Items() {
			r.mu.Lock()
			bindings[loop.ItemVar] = vars.String(item)
			r.mu.Unlock()
			if err := r.runSequence(ctx, path.Child(i), step.Children, bindings); err != nil {
				return err
			}
		}
		return nil
	}

	iterCap := loop.MaxIterations
	if iterCap <= 0 {
		iterCap = r.cfg.Engine.MaxLoopIterations
	}
	if iterCap <= 0 {
		iterCap = 100
	}
	for i := 0; ; i++ {
		if i >= iterCap {
			return fmt.Errorf("step %s (%s) after %d iterations: %w", path, step.ID, iterCap, ErrLoopCapExceeded)
		}
		// The predicate is re-evaluated against live bindings before
		// every iteration.
		hold, err := EvalCondition(*loop.While, bindings)
		if err != nil {
			return fmt.Errorf("step %s (%s): %w", path, step.ID, err)
		}
		if !hold {
			return nil
		}
		if err := r.runSequence(ctx, path.Child(i), step.Children, bindings); err != nil {
			return err
		}
	}
}

func (r *Runner) runParallel(ctx context.Context, path schemas.StepPath, step schemas.Step, bindings vars.Bindings) error {
	limit := step.Parallel.MaxConcurrency
	if limit <= 0 {
		limit = r.cfg.Engine.ParallelLimit
	}
	if limit <= 0 {
		limit = 4
	}

	sem := semaphore.NewWeighted(int64(limit))
	g, gctx := errgroup.WithContext(ctx)

	// Each child works on an isolated copy of the variables; copies are
	// merged back only if the whole group succeeds.
	views := make([]vars.Bindings, len(step.Children))
	for i := range step.Children {
		views[i] = bindings.Clone()
	}

	for i, child := range step.Children {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return r.executeStep(gctx, path.Child(i), child, views[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Merge in child order: on key collision the later child wins.
	r.mu.Lock()
	for _, view := range views {
		bindings.Merge(view)
	}
	r.mu.Unlock()
	return nil
}

// runAction resolves variables and the target element, then hands the
// action to the executor.
func (r *Runner) runAction(ctx context.Context, path schemas.StepPath, step schemas.Step, bindings vars.Bindings) error {
	action := *step.Action

	r.emit(schemas.Event{
		Type:     schemas.EventStepStart,
		StepPath: path.String(),
		StepID:   step.ID,
		Action:   &action,
	})

	resolved, err := vars.Resolve(action, bindings)
	if err != nil {
		r.emitStepEnd(path, step, schemas.Outcome{Status: schemas.StepFailed, Error: err.Error()})
		return fmt.Errorf("step %s (%s): %w", path, step.ID, err)
	}

	// Element resolution happens fresh per step against a new snapshot;
	// refs never survive a navigation.
	var target *browser.Target
	if resolved.NeedsTarget() {
		target, err = r.resolveTarget(ctx, resolved)
		if err != nil {
			r.emitStepEnd(path, step, schemas.Outcome{Status: schemas.StepFailed, Error: err.Error()})
			return fmt.Errorf("step %s (%s): %w", path, step.ID, err)
		}
	}

	exec := r.exec
	if step.Retry != nil {
		exec = exec.WithPolicy(*step.Retry)
	}

	extracted, err := exec.Run(ctx, r.runID, path, step.ID, resolved, target)
	if err != nil {
		if errors.Is(err, executor.ErrHalted) {
			// The operator stopped the run mid-step; the step is
			// abandoned, not failed.
			return errStopped
		}
		if ctx.Err() != nil {
			return err
		}
		r.emitStepEnd(path, step, schemas.Outcome{Status: schemas.StepFailed, Error: err.Error()})
		return fmt.Errorf("step %s (%s): %w", path, step.ID, err)
	}

	if resolved.Kind == schemas.ActionExtract && resolved.ExtractInto != "" {
		r.mu.Lock()
		bindings[resolved.ExtractInto] = vars.String(extracted)
		r.mu.Unlock()
	}

	r.emitStepEnd(path, step, schemas.Outcome{Status: schemas.StepSucceeded, Extracted: extracted})
	return nil
}

// resolveTarget captures a snapshot, extracts candidates and scores them
// against the action's target description.
func (r *Runner) resolveTarget(ctx context.Context, action schemas.Action) (*browser.Target, error) {
	snap, err := r.collab.QueryDOM(ctx)
	if err != nil {
		return nil, fmt.Errorf("DOM snapshot failed: %w", err)
	}

	candidates := dom.Extract(snap.Generation, snap.Nodes)
	descriptor := intent.Describe(action.Kind, action.Resolved.Target)

	match, err := r.scorer.Resolve(descriptor, candidates)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Element resolved.",
		zap.String("target", descriptor.TargetDescription),
		zap.String("ref", match.Candidate.Ref),
		zap.Float64("score", match.Score),
		zap.String("strategy", string(match.Strategy)))

	return &browser.Target{Ref: match.Candidate.Ref, Generation: match.Candidate.Generation}, nil
}

// skipCompleted reports whether the step at path finished in a previous
// run, per the resume checkpoint. A container on the path to the
// checkpoint is entered so its remaining children can run.
func (r *Runner) skipCompleted(path schemas.StepPath) bool {
	r.mu.Lock()
	checkpoint := r.resumeFrom
	r.mu.Unlock()
	if len(checkpoint) == 0 {
		return false
	}
	if properPrefix(path, checkpoint) {
		return false
	}
	return comparePaths(path, checkpoint) <= 0
}

// comparePaths orders step paths in document order.
func comparePaths(a, b schemas.StepPath) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func properPrefix(p, q schemas.StepPath) bool {
	if len(p) >= len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

func (r *Runner) emitStepEnd(path schemas.StepPath, step schemas.Step, outcome schemas.Outcome) {
	r.emit(schemas.Event{
		Type:     schemas.EventStepEnd,
		StepPath: path.String(),
		StepID:   step.ID,
		Action:   step.Action,
		Outcome:  &outcome,
	})
}

// emit stamps and delivers an event without ever blocking the run.
func (r *Runner) emit(ev schemas.Event) {
	ev.RunID = r.runID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("Event buffer full; dropping event.", zap.String("type", string(ev.Type)))
	}
}
