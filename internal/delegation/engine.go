// Package delegation implements strategy-driven task delegation: a task
// comes in, a strategy picks the worker, the registry runs it, and outcomes
// feed performance metrics, a decision history, and at most one
// retry-with-fallback round.
package delegation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/internal/registry"
	"github.com/seralin/drover/pkg/models"
)

const (
	defaultTaskTimeout   = 5 * time.Minute
	defaultShutdownGrace = 30 * time.Second
	// maxRetryInterval caps the backoff delay before the fallback attempt.
	maxRetryInterval = 30 * time.Second
	// drainPollInterval is how often Shutdown re-checks the active set.
	drainPollInterval = time.Second
)

// RetryPolicy controls the single retry-with-fallback round after a failed
// attempt. MaxRetries 0 disables the round entirely.
type RetryPolicy struct {
	MaxRetries        int
	BackoffMultiplier float64
	InitialDelay      time.Duration
}

// Options configures an Engine.
type Options struct {
	// Strategy picks workers. Invalid or empty falls back to capability.
	Strategy Strategy
	// PrimaryWorker is where the priority strategy sends high-priority tasks.
	PrimaryWorker string
	// Retry controls the fallback round after a failed attempt.
	Retry RetryPolicy
	// TaskTimeout bounds each worker call. Defaults to 5 minutes.
	TaskTimeout time.Duration
	// MaxConcurrentTasks caps tasks in flight. Non-positive means unlimited.
	MaxConcurrentTasks int
	// HistorySize is the decision ring capacity. Defaults to DefaultHistorySize.
	HistorySize int
	// ShutdownGrace is how long Shutdown waits for active tasks.
	ShutdownGrace time.Duration
	// Clock drives timing. Defaults to the wall clock.
	Clock clock.Clock
	// Events receives delegation events. Nil means no subscribers.
	Events events.Publisher
}

// Engine delegates tasks to workers through a selection strategy, tracking
// every decision and outcome.
type Engine struct {
	registry *registry.Registry
	tracker  *Tracker
	history  *History
	events   events.Publisher
	clock    clock.Clock
	opts     Options

	// mu protects active, rrIndex, and closed.
	mu      sync.Mutex
	active  map[string]bool
	rrIndex int
	closed  bool
}

// New creates an Engine delegating through the given registry.
func New(reg *registry.Registry, opts Options) *Engine {
	if !opts.Strategy.Valid() {
		opts.Strategy = StrategyCapability
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = defaultShutdownGrace
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Engine{
		registry: reg,
		tracker:  NewTracker(),
		history:  NewHistory(opts.HistorySize),
		events:   opts.Events,
		clock:    opts.Clock,
		opts:     opts,
		active:   make(map[string]bool),
	}
}

// DelegateTask selects a worker for the task, executes it, and returns the
// worker's output. A failed attempt triggers at most one retry on a fallback
// worker when the retry policy allows it. Selection failures surface
// immediately and are never retried.
func (e *Engine) DelegateTask(ctx context.Context, task *models.Task) (string, error) {
	if task == nil {
		return "", errors.New("delegate: task is required")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()[:8]
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrEngineClosed
	}
	if e.opts.MaxConcurrentTasks > 0 && len(e.active) >= e.opts.MaxConcurrentTasks {
		inFlight := len(e.active)
		e.mu.Unlock()
		return "", fmt.Errorf("delegation engine at capacity: %d tasks in flight", inFlight)
	}
	e.active[task.ID] = true
	e.mu.Unlock()
	defer e.release(task.ID)

	decision, err := e.decide(task)
	if err != nil {
		return "", err
	}
	e.recordDecision(task, decision)

	output, primaryErr := e.attempt(ctx, decision.Worker, task)
	if primaryErr == nil {
		return output, nil
	}
	if ctx.Err() != nil {
		return "", primaryErr
	}
	log.Printf("[delegation] task %s failed on %s: %v", task.ID, decision.Worker, primaryErr)

	if e.opts.Retry.MaxRetries <= 0 {
		return "", &DelegationExhaustedError{
			TaskID:  task.ID,
			Worker:  decision.Worker,
			Failure: primaryErr.Error(),
		}
	}

	if err := e.waitBackoff(ctx); err != nil {
		return "", err
	}

	fallback, err := e.registry.GetBestMatch(nil, []string{decision.Worker})
	if err != nil {
		return "", &DelegationExhaustedError{
			TaskID:  task.ID,
			Worker:  decision.Worker,
			Failure: primaryErr.Error(),
		}
	}

	fbDecision := &models.DelegationDecision{
		TaskID:     task.ID,
		Worker:     fallback.Name,
		Reason:     fmt.Sprintf("fallback after %s failed", decision.Worker),
		Confidence: 0.5,
		Strategy:   "fallback",
		DecidedAt:  e.clock.Now(),
	}
	e.recordDecision(task, fbDecision)

	output, fbErr := e.attempt(ctx, fallback.Name, task)
	if fbErr == nil {
		return output, nil
	}
	return "", &DelegationExhaustedError{
		TaskID:          task.ID,
		Worker:          decision.Worker,
		Failure:         primaryErr.Error(),
		Fallback:        fallback.Name,
		FallbackFailure: fbErr.Error(),
	}
}

// attempt runs the task on one worker with the configured timeout and
// records the outcome metric.
func (e *Engine) attempt(ctx context.Context, workerName string, task *models.Task) (string, error) {
	execCtx := ctx
	if e.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.opts.TaskTimeout)
		defer cancel()
	}

	start := e.clock.Now()
	result, err := e.registry.Execute(execCtx, workerName, task)
	elapsed := e.clock.Since(start)

	if err != nil {
		e.tracker.Record(workerName, false, 0)
		return "", err
	}
	if !result.Success {
		e.tracker.Record(workerName, false, 0)
		return "", fmt.Errorf("worker %s failed task %s: %s", workerName, task.ID, result.Error)
	}
	e.tracker.Record(workerName, true, elapsed)
	return result.Output, nil
}

// waitBackoff sleeps one exponential-backoff delay seeded from the retry
// policy, or returns early when ctx ends.
func (e *Engine) waitBackoff(ctx context.Context) error {
	policy := e.opts.Retry
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 500 * time.Millisecond
	}
	if policy.BackoffMultiplier < 1 {
		policy.BackoffMultiplier = backoff.DefaultMultiplier
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     policy.InitialDelay,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          policy.BackoffMultiplier,
		MaxInterval:         maxRetryInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	delay := b.NextBackOff()

	select {
	case <-e.clock.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordDecision appends to history, publishes, and stamps the task.
func (e *Engine) recordDecision(task *models.Task, d *models.DelegationDecision) {
	task.Status = models.TaskStatusDelegated
	task.UpdatedAt = d.DecidedAt
	e.history.Append(*d)
	e.publish(events.Event{
		Type:    events.EventTaskDelegated,
		TaskID:  task.ID,
		Worker:  d.Worker,
		Message: d.Reason,
	})
	log.Printf("[delegation] task %s -> %s (%s)", task.ID, d.Worker, d.Reason)
}

// decide picks a worker for the task using the configured strategy.
func (e *Engine) decide(task *models.Task) (*models.DelegationDecision, error) {
	avail := e.registry.GetAvailable()
	if len(avail) == 0 {
		return nil, &registry.NoAvailableWorkerError{}
	}
	switch e.opts.Strategy {
	case StrategyLoadBalanced:
		return e.decideByLoad(task, avail), nil
	case StrategyPriority:
		return e.decideByPriority(task, avail), nil
	case StrategyRoundRobin:
		return e.decideRoundRobin(task, avail), nil
	case StrategyAdaptive:
		return e.decideAdaptive(task, avail), nil
	default:
		return e.decideByCapability(task, avail), nil
	}
}

func (e *Engine) decideByCapability(task *models.Task, avail []*models.Worker) *models.DelegationDecision {
	required := RequiredTags(task)
	ranked := RankByCapability(avail, required, e.tracker.Rate)
	best := ranked[0]

	reason := "no specific capabilities required"
	if len(required) > 0 {
		reason = fmt.Sprintf("capability overlap %d of %d required tags",
			best.Worker.CapabilityOverlap(required), len(required))
	}
	return &models.DelegationDecision{
		TaskID:       task.ID,
		Worker:       best.Worker.Name,
		Reason:       reason,
		Confidence:   Confidence(best.Score),
		Alternatives: alternativeNames(ranked),
		Strategy:     string(StrategyCapability),
		DecidedAt:    e.clock.Now(),
	}
}

func (e *Engine) decideByLoad(task *models.Task, avail []*models.Worker) *models.DelegationDecision {
	sorted := make([]*models.Worker, len(avail))
	copy(sorted, avail)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].LoadRatio(), sorted[j].LoadRatio()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].LastActivity.After(sorted[j].LastActivity)
	})

	best := sorted[0]
	alts := make([]string, 0, 3)
	for _, w := range sorted[1:] {
		if len(alts) == 3 {
			break
		}
		alts = append(alts, w.Name)
	}
	return &models.DelegationDecision{
		TaskID:       task.ID,
		Worker:       best.Name,
		Reason:       fmt.Sprintf("lowest load ratio %.2f (%d/%d)", best.LoadRatio(), best.CurrentLoad, best.MaxLoad),
		Confidence:   0.5 + (1-best.LoadRatio())*0.3,
		Alternatives: alts,
		Strategy:     string(StrategyLoadBalanced),
		DecidedAt:    e.clock.Now(),
	}
}

func (e *Engine) decideByPriority(task *models.Task, avail []*models.Worker) *models.DelegationDecision {
	if task.Priority >= highPriorityThreshold && e.opts.PrimaryWorker != "" {
		for _, w := range avail {
			if w.Name != e.opts.PrimaryWorker {
				continue
			}
			return &models.DelegationDecision{
				TaskID:     task.ID,
				Worker:     w.Name,
				Reason:     fmt.Sprintf("priority %d routed to primary worker", task.Priority),
				Confidence: 0.85,
				Strategy:   string(StrategyPriority),
				DecidedAt:  e.clock.Now(),
			}
		}
	}
	return e.decideByLoad(task, avail)
}

func (e *Engine) decideRoundRobin(task *models.Task, avail []*models.Worker) *models.DelegationDecision {
	// The index is taken modulo the current pool size on every call, so the
	// pool shrinking between calls can never index out of range.
	e.mu.Lock()
	idx := e.rrIndex % len(avail)
	e.rrIndex = (idx + 1) % len(avail)
	e.mu.Unlock()

	return &models.DelegationDecision{
		TaskID:     task.ID,
		Worker:     avail[idx].Name,
		Reason:     fmt.Sprintf("round robin slot %d of %d", idx+1, len(avail)),
		Confidence: 0.5,
		Strategy:   string(StrategyRoundRobin),
		DecidedAt:  e.clock.Now(),
	}
}

func (e *Engine) decideAdaptive(task *models.Task, avail []*models.Worker) *models.DelegationDecision {
	capDec := e.decideByCapability(task, avail)
	loadDec := e.decideByLoad(task, avail)
	if capDec.Worker == loadDec.Worker {
		return capDec
	}

	var capRatio, loadRatio float64
	for _, w := range avail {
		switch w.Name {
		case capDec.Worker:
			capRatio = w.LoadRatio()
		case loadDec.Worker:
			loadRatio = w.LoadRatio()
		}
	}
	if capRatio-loadRatio <= loadGapThreshold {
		return capDec
	}
	return &models.DelegationDecision{
		TaskID: task.ID,
		Worker: loadDec.Worker,
		Reason: fmt.Sprintf("capability pick %s at load %.2f, shifting to %s at %.2f",
			capDec.Worker, capRatio, loadDec.Worker, loadRatio),
		Confidence:   adaptiveConfidence,
		Alternatives: []string{capDec.Worker},
		Strategy:     string(StrategyAdaptive),
		DecidedAt:    e.clock.Now(),
	}
}

// alternativeNames lists up to three runners-up from a ranked slice.
func alternativeNames(ranked []Candidate) []string {
	var out []string
	for _, c := range ranked[1:] {
		if len(out) == 3 {
			break
		}
		out = append(out, c.Worker.Name)
	}
	return out
}

// Recent returns up to n delegation decisions, newest first.
func (e *Engine) Recent(n int) []models.DelegationDecision {
	return e.history.Recent(n)
}

// Metrics returns the cumulative performance record per worker.
func (e *Engine) Metrics() []models.PerformanceMetric {
	return e.tracker.All()
}

// SuccessRate returns the tracked success rate for the named worker.
// Unproven workers report 0.
func (e *Engine) SuccessRate(worker string) float64 {
	return e.tracker.Rate(worker)
}

// ActiveCount returns how many tasks are currently in flight.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Shutdown stops accepting tasks and waits for in-flight ones, polling every
// second until the active set empties or the grace period elapses. It never
// fails; leftover tasks are logged and abandoned. The engine stays closed.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	deadline := e.clock.Now().Add(e.opts.ShutdownGrace)
	for {
		n := e.ActiveCount()
		if n == 0 {
			break
		}
		if !e.clock.Now().Before(deadline) {
			log.Printf("[delegation] shutdown grace elapsed, abandoning %d active tasks: %v", n, e.activeIDs())
			break
		}
		log.Printf("[delegation] shutdown waiting for %d active tasks", n)
		select {
		case <-e.clock.After(drainPollInterval):
		case <-ctx.Done():
			log.Printf("[delegation] shutdown cancelled with %d active tasks", n)
			return nil
		}
	}

	e.mu.Lock()
	e.active = make(map[string]bool)
	e.mu.Unlock()
	return nil
}

func (e *Engine) release(taskID string) {
	e.mu.Lock()
	delete(e.active, taskID)
	e.mu.Unlock()
}

func (e *Engine) activeIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) publish(ev events.Event) {
	if e.events != nil {
		e.events.Publish(ev)
	}
}
