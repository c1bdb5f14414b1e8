// Package workflow executes declared step graphs against the worker pool.
// Sequential mode runs steps in order and halts on failure; parallel mode
// runs dependency levels concurrently; adaptive mode funnels every step
// through the delegation engine.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/seralin/drover/internal/delegation"
	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/internal/registry"
	"github.com/seralin/drover/pkg/models"
)

// Options configures an Executor.
type Options struct {
	// Engine, when set, handles step delegation in adaptive mode. Without
	// one, adaptive workflows degrade to sequential execution.
	Engine *delegation.Engine
	// Clock drives run timestamps. Defaults to the wall clock.
	Clock clock.Clock
	// Events receives workflow events. Nil means no subscribers.
	Events events.Publisher
}

// Executor runs workflows against the registry's worker pool.
type Executor struct {
	registry *registry.Registry
	engine   *delegation.Engine
	events   events.Publisher
	clock    clock.Clock
}

// New creates an Executor over the given registry.
func New(reg *registry.Registry, opts Options) *Executor {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Executor{
		registry: reg,
		engine:   opts.Engine,
		events:   opts.Events,
		clock:    opts.Clock,
	}
}

// ExecuteWorkflow runs every step of the workflow under its declared mode
// and returns the execution record. Worker-level step failures are recorded
// on the execution; in sequential mode the first one is also returned as an
// error. EndedAt is stamped on every terminal path.
func (x *Executor) ExecuteWorkflow(ctx context.Context, wf *models.Workflow, execCtx models.ExecutionContext) (*models.WorkflowExecution, error) {
	if wf == nil || len(wf.Steps) == 0 {
		return nil, errors.New("workflow has no steps")
	}

	if execCtx.SessionID == "" {
		execCtx.SessionID = uuid.New().String()[:8]
	}
	execution := &models.WorkflowExecution{
		ID:         uuid.New().String()[:8],
		WorkflowID: wf.ID,
		Status:     models.ExecutionRunning,
		StartedAt:  x.clock.Now(),
		Results:    make(map[string]string),
		Errors:     make(map[string]string),
		Context:    execCtx,
	}

	x.publish(events.Event{
		Type:        events.EventWorkflowStarted,
		WorkflowID:  wf.ID,
		ExecutionID: execution.ID,
		Message:     fmt.Sprintf("mode=%s steps=%d", wf.Mode, len(wf.Steps)),
	})
	log.Printf("[workflow] execution %s started: workflow=%s mode=%s steps=%d",
		execution.ID, wf.ID, wf.Mode, len(wf.Steps))

	var err error
	switch wf.Mode {
	case models.WorkflowParallel:
		err = x.runParallel(ctx, wf, execution)
	case models.WorkflowAdaptive:
		if x.engine != nil {
			err = x.runAdaptive(ctx, wf, execution)
		} else {
			err = x.runSequential(ctx, wf, execution)
		}
	case models.WorkflowSequential, "":
		err = x.runSequential(ctx, wf, execution)
	default:
		err = fmt.Errorf("unknown workflow mode %q", wf.Mode)
	}

	x.finalize(execution, err)
	return execution, err
}

// runSequential executes steps in declared order. Each step's dependencies
// must already be completed. The first failure halts the run and is returned.
func (x *Executor) runSequential(ctx context.Context, wf *models.Workflow, execution *models.WorkflowExecution) error {
	completed := make(map[string]bool, len(wf.Steps))
	for _, step := range wf.Steps {
		if ctx.Err() != nil {
			execution.Status = models.ExecutionCancelled
			return nil
		}
		if missing := missingDeps(step, completed); len(missing) > 0 {
			debugLog("[executor] run %s: step %s blocked on %v", execution.ID, step.ID, missing)
			return &UnmetDependencyError{StepID: step.ID, Missing: missing}
		}

		output, err := x.runStep(ctx, step, execution)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-step; the partial outcome is discarded.
				execution.Status = models.ExecutionCancelled
				return nil
			}
			x.recordFailure(execution, step.ID, err)
			return fmt.Errorf("step %s failed: %w", step.ID, err)
		}
		x.recordSuccess(execution, step.ID, output)
		completed[step.ID] = true
	}
	return nil
}

// runParallel executes dependency levels concurrently, joining each level
// before the next begins. A failed step does not block its level siblings,
// and its dependents still run in later levels.
func (x *Executor) runParallel(ctx context.Context, wf *models.Workflow, execution *models.WorkflowExecution) error {
	levels, err := Levels(wf.Steps)
	if err != nil {
		return err
	}
	debugLog("[executor] run %s: %d dependency levels across %d steps", execution.ID, len(levels), len(wf.Steps))

	type outcome struct {
		stepID string
		output string
		err    error
	}

	for i, level := range levels {
		if ctx.Err() != nil {
			execution.Status = models.ExecutionCancelled
			return nil
		}
		debugLog("[executor] run %s: level %d dispatching %d step(s)", execution.ID, i, len(level))

		results := make(chan outcome, len(level))
		var wg sync.WaitGroup
		for _, step := range level {
			wg.Add(1)
			go func(step models.WorkflowStep) {
				defer wg.Done()
				output, err := x.runStep(ctx, step, execution)
				results <- outcome{stepID: step.ID, output: output, err: err}
			}(step)
		}
		wg.Wait()
		close(results)

		cancelled := ctx.Err() != nil
		for out := range results {
			switch {
			case out.err == nil:
				x.recordSuccess(execution, out.stepID, out.output)
			case cancelled:
				// Failures of calls cut short by cancellation are discarded.
			default:
				x.recordFailure(execution, out.stepID, out.err)
			}
		}
		if cancelled {
			execution.Status = models.ExecutionCancelled
			return nil
		}
	}
	return nil
}

// runAdaptive hands every step to the delegation engine in declared order.
// The engine owns worker choice and retries, so step dependencies and
// preferred workers are advisory here; failures are recorded and the run
// continues.
func (x *Executor) runAdaptive(ctx context.Context, wf *models.Workflow, execution *models.WorkflowExecution) error {
	for _, step := range wf.Steps {
		if ctx.Err() != nil {
			execution.Status = models.ExecutionCancelled
			return nil
		}

		task := x.materializeTask(step, execution)
		debugLog("[executor] run %s: delegating step %s as task %s", execution.ID, step.ID, task.ID)
		x.publish(events.Event{
			Type:        events.EventStepStarted,
			WorkflowID:  execution.WorkflowID,
			ExecutionID: execution.ID,
			StepID:      step.ID,
			TaskID:      task.ID,
		})

		output, err := x.engine.DelegateTask(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				execution.Status = models.ExecutionCancelled
				return nil
			}
			x.recordFailure(execution, step.ID, err)
			continue
		}
		x.recordSuccess(execution, step.ID, output)
	}
	return nil
}

// runStep materializes the step into a task and executes it on the resolved
// worker. It never mutates the execution; outcomes are recorded by callers.
func (x *Executor) runStep(ctx context.Context, step models.WorkflowStep, execution *models.WorkflowExecution) (string, error) {
	task := x.materializeTask(step, execution)

	workerName, err := x.resolveWorker(step, task)
	if err != nil {
		return "", err
	}

	x.publish(events.Event{
		Type:        events.EventStepStarted,
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
		StepID:      step.ID,
		TaskID:      task.ID,
		Worker:      workerName,
	})

	result, err := x.registry.Execute(ctx, workerName, task)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("worker %s: %s", workerName, result.Error)
	}
	return result.Output, nil
}

// materializeTask builds the task a step dispatches as. Task IDs are scoped
// by the execution so concurrent runs of one workflow never collide.
func (x *Executor) materializeTask(step models.WorkflowStep, execution *models.WorkflowExecution) *models.Task {
	var metadata map[string]string
	if len(step.Metadata) > 0 {
		metadata = make(map[string]string, len(step.Metadata))
		for k, v := range step.Metadata {
			metadata[k] = v
		}
	}
	now := x.clock.Now()
	return &models.Task{
		ID:          execution.ID + "-" + step.ID,
		Description: step.Description,
		Type:        step.Type,
		Status:      models.TaskStatusPending,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// resolveWorker honors the step's preferred worker by exact then suffix name
// match while it can accept work, falling back to standard selection.
func (x *Executor) resolveWorker(step models.WorkflowStep, task *models.Task) (string, error) {
	if step.Worker != "" {
		if w, ok := x.registry.Get(step.Worker); ok && w.Accepting() {
			return w.Name, nil
		}
		for _, w := range x.registry.GetAvailable() {
			if strings.HasSuffix(w.Name, step.Worker) {
				debugLog("[resolve] step %s: worker %q matched %s by suffix", step.ID, step.Worker, w.Name)
				return w.Name, nil
			}
		}
		debugLog("[resolve] step %s: preferred worker %q unavailable, selecting by capability", step.ID, step.Worker)
	}
	best, err := x.registry.GetBestMatch(delegation.RequiredTags(task), nil)
	if err != nil {
		return "", err
	}
	debugLog("[resolve] step %s: selected %s", step.ID, best.Name)
	return best.Name, nil
}

func (x *Executor) recordSuccess(execution *models.WorkflowExecution, stepID, output string) {
	execution.CompletedSteps = append(execution.CompletedSteps, stepID)
	execution.Results[stepID] = output
	x.publish(events.Event{
		Type:        events.EventStepCompleted,
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
		StepID:      stepID,
	})
}

func (x *Executor) recordFailure(execution *models.WorkflowExecution, stepID string, err error) {
	execution.FailedSteps = append(execution.FailedSteps, stepID)
	execution.Errors[stepID] = err.Error()
	x.publish(events.Event{
		Type:        events.EventStepFailed,
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
		StepID:      stepID,
		Error:       err,
	})
	log.Printf("[workflow] execution %s step %s failed: %v", execution.ID, stepID, err)
}

// finalize settles the terminal status and stamps EndedAt. Cancellation set
// by a run function wins over failure accounting.
func (x *Executor) finalize(execution *models.WorkflowExecution, err error) {
	switch {
	case execution.Status == models.ExecutionCancelled:
	case err != nil:
		execution.Status = models.ExecutionFailed
	case len(execution.FailedSteps) > 0:
		execution.Status = models.ExecutionFailed
	default:
		execution.Status = models.ExecutionCompleted
	}
	now := x.clock.Now()
	execution.EndedAt = &now

	eventType := events.EventWorkflowCompleted
	if execution.Status == models.ExecutionCancelled {
		eventType = events.EventWorkflowCancelled
	}
	x.publish(events.Event{
		Type:        eventType,
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
		Status:      string(execution.Status),
		Message: fmt.Sprintf("completed=%d failed=%d",
			len(execution.CompletedSteps), len(execution.FailedSteps)),
	})
	log.Printf("[workflow] execution %s finished: status=%s completed=%d failed=%d",
		execution.ID, execution.Status, len(execution.CompletedSteps), len(execution.FailedSteps))
}

func (x *Executor) publish(ev events.Event) {
	if x.events != nil {
		x.events.Publish(ev)
	}
}
