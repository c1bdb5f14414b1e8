package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/internal/worker"
	"github.com/seralin/drover/pkg/models"
)

// capture records every published event for assertions.
type capture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capture) Publish(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capture) byType(t events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func mustRegister(t *testing.T, r *Registry, cfg WorkerConfig, c worker.Contract) {
	t.Helper()
	if err := r.Register(context.Background(), cfg, c); err != nil {
		t.Fatalf("register %s: %v", cfg.Name, err)
	}
}

// blockingFake returns a fake whose execution blocks until release is closed.
// started is closed once the task is inside the worker.
func blockingFake(name string, started, release chan struct{}) *worker.Fake {
	f := worker.NewFake(name)
	f.ExecFunc = func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &models.TaskResult{TaskID: task.ID, Worker: name, Success: true}, nil
	}
	return f
}

func TestRegisterMakesWorkerAvailable(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "alpha", Type: "cli", MaxLoad: 2}, worker.NewFake("alpha"))

	w, ok := r.Get("alpha")
	if !ok {
		t.Fatal("expected alpha to be registered")
	}
	if w.Status != models.WorkerStatusAvailable {
		t.Errorf("expected status available, got %s", w.Status)
	}
	if w.MaxLoad != 2 {
		t.Errorf("expected max load 2, got %d", w.MaxLoad)
	}
	if w.CurrentLoad != 0 {
		t.Errorf("expected load 0, got %d", w.CurrentLoad)
	}
}

func TestRegisterMergesConfiguredAndAdvertisedCapabilities(t *testing.T) {
	r := New(Options{})
	f := worker.NewFake("alpha", "coding", "analysis")
	mustRegister(t, r, WorkerConfig{Name: "alpha", Capabilities: []string{"research", "coding"}}, f)

	w, _ := r.Get("alpha")
	want := []string{"research", "coding", "analysis"}
	if len(w.Capabilities) != len(want) {
		t.Fatalf("expected capabilities %v, got %v", want, w.Capabilities)
	}
	for i, tag := range want {
		if w.Capabilities[i] != tag {
			t.Errorf("capability %d: expected %s, got %s", i, tag, w.Capabilities[i])
		}
	}
}

func TestRegisterInitFailureLeavesWorkerInError(t *testing.T) {
	r := New(Options{})
	f := worker.NewFake("alpha")
	f.InitErr = errors.New("no binary")

	err := r.Register(context.Background(), WorkerConfig{Name: "alpha"}, f)
	if err == nil {
		t.Fatal("expected an error from failed initialization")
	}

	w, ok := r.Get("alpha")
	if !ok {
		t.Fatal("expected alpha to stay registered after init failure")
	}
	if w.Status != models.WorkerStatusError {
		t.Errorf("expected status error, got %s", w.Status)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, worker.NewFake("alpha"))

	if err := r.Register(context.Background(), WorkerConfig{Name: "alpha"}, worker.NewFake("alpha")); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if got := r.Count(); got != 1 {
		t.Errorf("expected 1 worker, got %d", got)
	}
}

func TestGetBestMatchPrefersLeastLoaded(t *testing.T) {
	r := New(Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	mustRegister(t, r, WorkerConfig{Name: "loaded", MaxLoad: 2}, blockingFake("loaded", started, release))
	mustRegister(t, r, WorkerConfig{Name: "idle", MaxLoad: 2}, worker.NewFake("idle"))

	go r.Execute(context.Background(), "loaded", &models.Task{ID: "t1"})
	<-started

	best, err := r.GetBestMatch(nil, nil)
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if best.Name != "idle" {
		t.Errorf("expected idle worker, got %s", best.Name)
	}
}

func TestGetBestMatchTieBreaksOnRecentActivity(t *testing.T) {
	mock := clock.NewMock()
	r := New(Options{Clock: mock})
	mustRegister(t, r, WorkerConfig{Name: "alpha", MaxLoad: 2}, worker.NewFake("alpha"))
	mustRegister(t, r, WorkerConfig{Name: "beta", MaxLoad: 2}, worker.NewFake("beta"))

	mock.Add(time.Second)
	if _, err := r.Execute(context.Background(), "beta", &models.Task{ID: "t1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	best, err := r.GetBestMatch(nil, nil)
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if best.Name != "beta" {
		t.Errorf("expected the recently active worker beta, got %s", best.Name)
	}
}

func TestGetBestMatchFiltersByCapability(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "coder", Capabilities: []string{"coding"}}, worker.NewFake("coder"))
	mustRegister(t, r, WorkerConfig{Name: "scholar", Capabilities: []string{"research"}}, worker.NewFake("scholar"))

	best, err := r.GetBestMatch([]string{"research"}, nil)
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if best.Name != "scholar" {
		t.Errorf("expected scholar, got %s", best.Name)
	}
}

func TestGetBestMatchHonorsExclusions(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, worker.NewFake("alpha"))
	mustRegister(t, r, WorkerConfig{Name: "beta"}, worker.NewFake("beta"))

	best, err := r.GetBestMatch(nil, []string{"alpha"})
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if best.Name != "beta" {
		t.Errorf("expected beta after excluding alpha, got %s", best.Name)
	}
}

func TestGetBestMatchNoCandidates(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "alpha", Capabilities: []string{"coding"}}, worker.NewFake("alpha"))

	_, err := r.GetBestMatch([]string{"multimodal"}, nil)
	var noWorker *NoAvailableWorkerError
	if !errors.As(err, &noWorker) {
		t.Fatalf("expected NoAvailableWorkerError, got %v", err)
	}
}

func TestExecuteSuccessReleasesLoad(t *testing.T) {
	r := New(Options{})
	f := worker.NewFake("alpha")
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, f)

	task := &models.Task{ID: "t1", Description: "summarize"}
	result, err := r.Execute(context.Background(), "alpha", task)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Error("expected a successful result")
	}
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("expected task completed, got %s", task.Status)
	}

	w, _ := r.Get("alpha")
	if w.CurrentLoad != 0 {
		t.Errorf("expected load released to 0, got %d", w.CurrentLoad)
	}
	if f.ExecCount() != 1 {
		t.Errorf("expected 1 execution, got %d", f.ExecCount())
	}
}

func TestExecuteFailedResultMarksTaskFailed(t *testing.T) {
	r := New(Options{})
	f := worker.NewFake("alpha")
	f.FailNext("compile error")
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, f)

	task := &models.Task{ID: "t1"}
	result, err := r.Execute(context.Background(), "alpha", task)
	if err != nil {
		t.Fatalf("an attempted-and-failed task should not surface as an error, got %v", err)
	}
	if result.Success {
		t.Error("expected a failed result")
	}
	if result.Error != "compile error" {
		t.Errorf("expected failure message preserved, got %q", result.Error)
	}
	if task.Status != models.TaskStatusFailed {
		t.Errorf("expected task failed, got %s", task.Status)
	}
}

func TestExecuteUnknownWorker(t *testing.T) {
	r := New(Options{})

	_, err := r.Execute(context.Background(), "ghost", &models.Task{ID: "t1"})
	var notFound *WorkerNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected WorkerNotFoundError, got %v", err)
	}
	if notFound.Name != "ghost" {
		t.Errorf("expected worker name ghost, got %s", notFound.Name)
	}
}

func TestExecuteAtCapacityBecomesBusy(t *testing.T) {
	r := New(Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	mustRegister(t, r, WorkerConfig{Name: "alpha", MaxLoad: 1}, blockingFake("alpha", started, release))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := r.Execute(context.Background(), "alpha", &models.Task{ID: "t1"}); err != nil {
			t.Errorf("execute: %v", err)
		}
	}()
	<-started

	w, _ := r.Get("alpha")
	if w.Status != models.WorkerStatusBusy {
		t.Errorf("expected busy at capacity, got %s", w.Status)
	}

	_, err := r.Execute(context.Background(), "alpha", &models.Task{ID: "t2"})
	var unavailable *WorkerUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected WorkerUnavailableError, got %v", err)
	}

	close(release)
	<-done

	w, _ = r.Get("alpha")
	if w.Status != models.WorkerStatusAvailable {
		t.Errorf("expected available after release, got %s", w.Status)
	}
	if w.CurrentLoad != 0 {
		t.Errorf("expected load 0 after release, got %d", w.CurrentLoad)
	}
}

func TestExecuteTimeout(t *testing.T) {
	r := New(Options{})
	f := worker.NewFake("alpha")
	f.ExecDelay = 200 * time.Millisecond
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, f)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	task := &models.Task{ID: "t1"}
	_, err := r.Execute(ctx, "alpha", task)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeout.Worker != "alpha" || timeout.TaskID != "t1" {
		t.Errorf("expected timeout details for alpha/t1, got %s/%s", timeout.Worker, timeout.TaskID)
	}
	if task.Status != models.TaskStatusFailed {
		t.Errorf("expected task failed after timeout, got %s", task.Status)
	}

	w, _ := r.Get("alpha")
	if w.CurrentLoad != 0 {
		t.Errorf("expected load released after timeout, got %d", w.CurrentLoad)
	}
}

func TestExecutePublishesLoadEvents(t *testing.T) {
	sink := &capture{}
	r := New(Options{Events: sink})
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, worker.NewFake("alpha"))

	if _, err := r.Execute(context.Background(), "alpha", &models.Task{ID: "t1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got := sink.byType(events.EventWorkerRegistered); len(got) != 1 {
		t.Errorf("expected 1 registered event, got %d", len(got))
	}
	loads := sink.byType(events.EventWorkerLoadChanged)
	if len(loads) != 2 {
		t.Fatalf("expected 2 load events (acquire, release), got %d", len(loads))
	}
	if loads[0].Load != 1 || loads[1].Load != 0 {
		t.Errorf("expected loads 1 then 0, got %d then %d", loads[0].Load, loads[1].Load)
	}
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := New(Options{})
	for _, name := range []string{"charlie", "alpha", "beta"} {
		mustRegister(t, r, WorkerConfig{Name: name}, worker.NewFake(name))
	}

	listed := r.List()
	want := []string{"charlie", "alpha", "beta"}
	if len(listed) != len(want) {
		t.Fatalf("expected %d workers, got %d", len(want), len(listed))
	}
	for i, name := range want {
		if listed[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, listed[i].Name)
		}
	}
}

func TestGetByCapability(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "coder", Capabilities: []string{"coding"}}, worker.NewFake("coder"))
	mustRegister(t, r, WorkerConfig{Name: "scholar", Capabilities: []string{"research"}}, worker.NewFake("scholar"))
	mustRegister(t, r, WorkerConfig{Name: "hybrid", Capabilities: []string{"coding", "research"}}, worker.NewFake("hybrid"))

	coders := r.GetByCapability("coding")
	if len(coders) != 2 {
		t.Fatalf("expected 2 coding workers, got %d", len(coders))
	}
	if coders[0].Name != "coder" || coders[1].Name != "hybrid" {
		t.Errorf("expected [coder hybrid], got [%s %s]", coders[0].Name, coders[1].Name)
	}
}

func TestShutdownClearsPool(t *testing.T) {
	r := New(Options{})
	f := worker.NewFake("alpha")
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, f)

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := r.Count(); got != 0 {
		t.Errorf("expected empty registry after shutdown, got %d workers", got)
	}
	if f.CheckHealth(context.Background()) {
		t.Error("expected the contract to be shut down")
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "alpha", Capabilities: []string{"coding"}}, worker.NewFake("alpha"))

	w, _ := r.Get("alpha")
	w.Status = models.WorkerStatusError
	w.Capabilities[0] = "tampered"

	fresh, _ := r.Get("alpha")
	if fresh.Status != models.WorkerStatusAvailable {
		t.Errorf("mutating a snapshot must not touch the registry, got status %s", fresh.Status)
	}
	if fresh.Capabilities[0] != "coding" {
		t.Errorf("mutating a snapshot's capabilities must not touch the registry, got %s", fresh.Capabilities[0])
	}
}

func TestAuthStatusReadsContract(t *testing.T) {
	r := New(Options{})
	mustRegister(t, r, WorkerConfig{Name: "alpha"}, worker.NewFake("alpha"))

	status, ok := r.AuthStatus("alpha")
	if !ok {
		t.Fatal("expected auth status for a registered worker")
	}
	if !status.Authenticated || status.Method != "fake" {
		t.Errorf("unexpected auth status: %+v", status)
	}

	if _, ok := r.AuthStatus("ghost"); ok {
		t.Error("expected no auth status for an unknown worker")
	}
}
