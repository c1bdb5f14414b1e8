// Package registry owns the pool of registered workers: their live status,
// load accounting, capability queries, and health polling. Every other
// component reaches a worker through the registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/internal/worker"
	"github.com/seralin/drover/pkg/models"
)

// DefaultPollInterval is how often the health monitor checks each worker.
const DefaultPollInterval = 60 * time.Second

// defaultCheckTimeout bounds a single health check call.
const defaultCheckTimeout = 10 * time.Second

// entry pairs a worker's mutable state with the contract that executes tasks
// on its behalf.
type entry struct {
	worker   *models.Worker
	contract worker.Contract
}

// Registry tracks registered workers and routes execution calls to their
// contracts. Load counters and status transitions are owned here; callers
// receive snapshots.
type Registry struct {
	// mu protects workers and order.
	mu      sync.RWMutex
	workers map[string]*entry
	// order preserves registration order for stable iteration.
	order []string

	events       events.Publisher
	clock        clock.Clock
	pollInterval time.Duration
	checkTimeout time.Duration

	// healthMu protects the monitor lifecycle fields.
	healthMu   sync.Mutex
	healthStop chan struct{}
	healthDone chan struct{}
}

// Options configures a Registry.
type Options struct {
	// PollInterval is the health monitor period. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// CheckTimeout bounds each individual health check call.
	CheckTimeout time.Duration
	// Clock drives the health ticker. Defaults to the wall clock.
	Clock clock.Clock
	// Events receives registry events. Nil means no subscribers.
	Events events.Publisher
}

// WorkerConfig describes a worker being registered.
type WorkerConfig struct {
	// Name is the unique worker name.
	Name string
	// Type is the declared backend type (e.g., "cli", "anthropic").
	Type string
	// Capabilities are the tags declared in configuration. They are merged
	// with the tags the contract advertises.
	Capabilities []string
	// MaxLoad is the maximum number of concurrent tasks. Defaults to 1.
	MaxLoad int
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = defaultCheckTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Registry{
		workers:      make(map[string]*entry),
		events:       opts.Events,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
		checkTimeout: opts.CheckTimeout,
	}
}

// Register adds a worker and initializes its contract. The worker starts
// Offline and becomes Available after a successful initialize; an initialize
// failure leaves it registered in Error with load 0 so a later health poll
// can revive it.
func (r *Registry) Register(ctx context.Context, cfg WorkerConfig, contract worker.Contract) error {
	if cfg.Name == "" {
		return errors.New("register worker: name is required")
	}
	if contract == nil {
		return fmt.Errorf("register worker %s: contract is required", cfg.Name)
	}

	maxLoad := cfg.MaxLoad
	if maxLoad <= 0 {
		maxLoad = 1
	}

	w := &models.Worker{
		Name:         cfg.Name,
		Type:         cfg.Type,
		Status:       models.WorkerStatusOffline,
		Capabilities: mergeCapabilities(cfg.Capabilities, contract.Capabilities()),
		MaxLoad:      maxLoad,
		LastActivity: r.clock.Now(),
	}

	r.mu.Lock()
	if _, exists := r.workers[cfg.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("worker %q already registered", cfg.Name)
	}
	r.workers[cfg.Name] = &entry{worker: w, contract: contract}
	r.order = append(r.order, cfg.Name)
	r.mu.Unlock()

	if err := contract.Initialize(ctx); err != nil {
		r.setStatus(cfg.Name, models.WorkerStatusError)
		return fmt.Errorf("initialize worker %s: %w", cfg.Name, err)
	}

	r.setStatus(cfg.Name, models.WorkerStatusAvailable)
	r.publish(events.Event{
		Type:    events.EventWorkerRegistered,
		Worker:  cfg.Name,
		Message: fmt.Sprintf("type=%s capabilities=%v max_load=%d", cfg.Type, w.Capabilities, maxLoad),
	})
	return nil
}

// Get returns a snapshot of the named worker.
func (r *Registry) Get(name string) (*models.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.workers[name]
	if !ok {
		return nil, false
	}
	return snapshot(e.worker), true
}

// List returns snapshots of all workers in registration order.
func (r *Registry) List() []*models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Worker, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, snapshot(r.workers[name].worker))
	}
	return out
}

// GetAvailable returns all workers that are accepting tasks, in registration
// order.
func (r *Registry) GetAvailable() []*models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Worker
	for _, name := range r.order {
		w := r.workers[name].worker
		if w.Accepting() {
			out = append(out, snapshot(w))
		}
	}
	return out
}

// GetByCapability returns available workers declaring the given tag.
func (r *Registry) GetByCapability(tag string) []*models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Worker
	for _, name := range r.order {
		w := r.workers[name].worker
		if w.Accepting() && w.HasCapability(tag) {
			out = append(out, snapshot(w))
		}
	}
	return out
}

// GetBestMatch selects the least-loaded available worker, skipping names in
// exclude. When required tags are given, only workers overlapping at least
// one tag are considered. Ties on load ratio go to the most recently active
// worker.
func (r *Registry) GetBestMatch(required []string, exclude []string) (*models.Worker, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	var candidates []*models.Worker
	for _, w := range r.GetAvailable() {
		if excluded[w.Name] {
			continue
		}
		if len(required) > 0 && w.CapabilityOverlap(required) == 0 {
			continue
		}
		candidates = append(candidates, w)
	}
	if len(candidates) == 0 {
		return nil, &NoAvailableWorkerError{Required: required}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].LoadRatio(), candidates[j].LoadRatio()
		if ri != rj {
			return ri < rj
		}
		return candidates[i].LastActivity.After(candidates[j].LastActivity)
	})
	return candidates[0], nil
}

// Execute forwards a task to the named worker's contract, accounting load
// around the call. The load is released regardless of outcome. A contract
// call that ran and failed comes back as a result with Success=false; an
// error return means the call could not be made or was cut short.
func (r *Registry) Execute(ctx context.Context, workerName string, task *models.Task) (*models.TaskResult, error) {
	r.mu.Lock()
	e, ok := r.workers[workerName]
	if !ok {
		r.mu.Unlock()
		return nil, &WorkerNotFoundError{Name: workerName}
	}
	w := e.worker
	if !w.Accepting() {
		unavailable := &WorkerUnavailableError{
			Name:        workerName,
			Status:      w.Status,
			CurrentLoad: w.CurrentLoad,
			MaxLoad:     w.MaxLoad,
		}
		r.mu.Unlock()
		return nil, unavailable
	}
	contract := e.contract
	w.CurrentLoad++
	w.LastActivity = r.clock.Now()
	load, maxLoad := w.CurrentLoad, w.MaxLoad
	becameBusy := false
	if w.CurrentLoad >= w.MaxLoad && w.Status == models.WorkerStatusAvailable {
		w.Status = models.WorkerStatusBusy
		becameBusy = true
	}
	r.mu.Unlock()

	r.publish(events.Event{Type: events.EventWorkerLoadChanged, Worker: workerName, Load: load, MaxLoad: maxLoad})
	if becameBusy {
		r.publish(events.Event{Type: events.EventWorkerStatusChanged, Worker: workerName, Status: string(models.WorkerStatusBusy)})
	}

	task.Status = models.TaskStatusInProgress
	task.UpdatedAt = r.clock.Now()

	result, err := contract.ExecuteTask(ctx, task)

	r.mu.Lock()
	if w.CurrentLoad > 0 {
		w.CurrentLoad--
	}
	w.LastActivity = r.clock.Now()
	load = w.CurrentLoad
	becameAvailable := false
	if w.Status == models.WorkerStatusBusy && w.CurrentLoad < w.MaxLoad {
		w.Status = models.WorkerStatusAvailable
		becameAvailable = true
	}
	r.mu.Unlock()

	r.publish(events.Event{Type: events.EventWorkerLoadChanged, Worker: workerName, Load: load, MaxLoad: maxLoad})
	if becameAvailable {
		r.publish(events.Event{Type: events.EventWorkerStatusChanged, Worker: workerName, Status: string(models.WorkerStatusAvailable)})
	}

	task.UpdatedAt = r.clock.Now()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			task.Status = models.TaskStatusFailed
			return nil, &TimeoutError{Worker: workerName, TaskID: task.ID}
		}
		if errors.Is(err, context.Canceled) {
			task.Status = models.TaskStatusCancelled
			return nil, err
		}
		task.Status = models.TaskStatusFailed
		return nil, fmt.Errorf("execute task %s on worker %s: %w", task.ID, workerName, err)
	}
	if result == nil {
		task.Status = models.TaskStatusFailed
		return nil, fmt.Errorf("worker %s returned no result for task %s", workerName, task.ID)
	}
	if result.Success {
		task.Status = models.TaskStatusCompleted
	} else {
		task.Status = models.TaskStatusFailed
	}
	return result, nil
}

// AuthStatus returns the authentication state reported by the named worker's
// contract. The registry only ever reads this.
func (r *Registry) AuthStatus(name string) (worker.AuthStatus, bool) {
	r.mu.RLock()
	e, ok := r.workers[name]
	r.mu.RUnlock()
	if !ok {
		return worker.AuthStatus{}, false
	}
	return e.contract.AuthStatus(), true
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// Shutdown stops health monitoring, shuts down every worker contract, and
// removes all workers. Contract shutdown failures are logged, not returned;
// the pool is cleared either way.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.StopHealthMonitor()

	r.mu.Lock()
	entries := make(map[string]*entry, len(r.workers))
	for name, e := range r.workers {
		entries[name] = e
	}
	order := r.order
	r.mu.Unlock()

	for _, name := range order {
		e := entries[name]
		if err := e.contract.Shutdown(ctx); err != nil {
			log.Printf("[registry] shutdown worker %s: %v", name, err)
		}
		r.setStatus(name, models.WorkerStatusOffline)
	}

	r.mu.Lock()
	r.workers = make(map[string]*entry)
	r.order = nil
	r.mu.Unlock()
	return nil
}

// setStatus transitions a worker's status and publishes the change.
func (r *Registry) setStatus(name string, status models.WorkerStatus) {
	r.mu.Lock()
	e, ok := r.workers[name]
	if !ok || e.worker.Status == status {
		r.mu.Unlock()
		return
	}
	e.worker.Status = status
	if status == models.WorkerStatusError || status == models.WorkerStatusOffline {
		e.worker.CurrentLoad = 0
	}
	r.mu.Unlock()

	r.publish(events.Event{
		Type:   events.EventWorkerStatusChanged,
		Worker: name,
		Status: string(status),
	})
}

func (r *Registry) publish(ev events.Event) {
	if r.events != nil {
		r.events.Publish(ev)
	}
}

// snapshot copies a worker so callers never share the registry's mutable
// state.
func snapshot(w *models.Worker) *models.Worker {
	cp := *w
	cp.Capabilities = append([]string(nil), w.Capabilities...)
	return &cp
}

// mergeCapabilities unions configured and advertised tags, preserving first
// appearance order.
func mergeCapabilities(configured, advertised []string) []string {
	seen := make(map[string]bool, len(configured)+len(advertised))
	var out []string
	for _, tag := range configured {
		if tag != "" && !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	for _, tag := range advertised {
		if tag != "" && !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
