package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seralin/drover/pkg/models"
)

// Fake is an in-memory Contract used by tests across packages.
// By default every task succeeds and echoes its description; behavior is
// scripted through the exported hooks.
type Fake struct {
	mu sync.Mutex

	// NameValue is the worker name stamped on results.
	NameValue string
	// Caps are the capabilities the fake advertises.
	Caps []string
	// InitErr, when set, makes Initialize fail.
	InitErr error
	// Healthy is what CheckHealth reports. Defaults to true after Initialize.
	Healthy bool
	// ExecDelay is slept inside ExecuteTask to simulate latency.
	ExecDelay time.Duration
	// ExecFunc, when set, fully overrides task execution.
	ExecFunc func(ctx context.Context, task *models.Task) (*models.TaskResult, error)

	failNext  []string
	execCount int
	executed  []string
}

// NewFake creates a fake worker with the given name and capability tags.
func NewFake(name string, caps ...string) *Fake {
	return &Fake{NameValue: name, Caps: caps}
}

// FailNext queues a failure message; the next ExecuteTask call returns an
// attempted-and-failed result carrying it. Multiple calls queue in order.
func (f *Fake) FailNext(msg string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = append(f.failNext, msg)
	return f
}

// ExecCount returns how many times ExecuteTask ran.
func (f *Fake) ExecCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execCount
}

// Executed returns the task IDs executed, in order.
func (f *Fake) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	copy(out, f.executed)
	return out
}

// Initialize fails with InitErr if set, otherwise marks the fake healthy.
func (f *Fake) Initialize(ctx context.Context) error {
	if f.InitErr != nil {
		return f.InitErr
	}
	f.mu.Lock()
	f.Healthy = true
	f.mu.Unlock()
	return nil
}

// Shutdown marks the fake unhealthy.
func (f *Fake) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	f.Healthy = false
	f.mu.Unlock()
	return nil
}

// ExecuteTask runs the scripted behavior.
func (f *Fake) ExecuteTask(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	f.mu.Lock()
	f.execCount++
	f.executed = append(f.executed, task.ID)
	var failMsg string
	if len(f.failNext) > 0 {
		failMsg = f.failNext[0]
		f.failNext = f.failNext[1:]
	}
	delay := f.ExecDelay
	hook := f.ExecFunc
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, task)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := &models.TaskResult{
		TaskID:      task.ID,
		Worker:      f.NameValue,
		Duration:    delay,
		CompletedAt: time.Now(),
	}
	if failMsg != "" {
		result.Success = false
		result.Error = failMsg
		return result, nil
	}
	result.Success = true
	result.Output = fmt.Sprintf("done: %s", task.Description)
	return result, nil
}

// CheckHealth reports the scripted health flag.
func (f *Fake) CheckHealth(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Healthy
}

// Capabilities returns the advertised tags.
func (f *Fake) Capabilities() []string {
	return f.Caps
}

// AuthStatus reports the fake as authenticated.
func (f *Fake) AuthStatus() AuthStatus {
	return AuthStatus{Authenticated: true, Method: "fake"}
}

// SetHealthy flips the health flag the next CheckHealth reports.
func (f *Fake) SetHealthy(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Healthy = v
}

// Verify Fake implements Contract at compile time.
var _ Contract = (*Fake)(nil)
