package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/pkg/models"
)

// fakeLister serves canned worker snapshots.
type fakeLister struct {
	rows  []*models.Worker
	calls int
}

func (f *fakeLister) List() []*models.Worker {
	f.calls++
	return f.rows
}

func testWorker(name string, status models.WorkerStatus, load, max int) *models.Worker {
	return &models.Worker{
		Name:         name,
		Type:         "cli",
		Status:       status,
		Capabilities: []string{"code"},
		CurrentLoad:  load,
		MaxLoad:      max,
	}
}

func TestNewWatchSnapshotsWorkers(t *testing.T) {
	lister := &fakeLister{rows: []*models.Worker{
		testWorker("alpha", models.WorkerStatusAvailable, 0, 2),
		testWorker("beta", models.WorkerStatusBusy, 2, 2),
	}}

	m := NewWatch(lister, nil)

	if len(m.rows) != 2 {
		t.Fatalf("expected 2 worker rows, got %d", len(m.rows))
	}
	if lister.calls != 1 {
		t.Errorf("expected one snapshot at construction, got %d", lister.calls)
	}
}

func TestQuitKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	}

	for _, key := range keys {
		m := NewWatch(&fakeLister{}, nil)
		next, cmd := m.Update(key)
		got := next.(WatchModel)

		if !got.quitting {
			t.Errorf("key %q: expected quitting", key.String())
		}
		if cmd == nil {
			t.Errorf("key %q: expected quit command", key.String())
		}
		if got.View() != "" {
			t.Errorf("key %q: expected empty view after quit", key.String())
		}
	}
}

func TestOtherKeysIgnored(t *testing.T) {
	m := NewWatch(&fakeLister{}, nil)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if next.(WatchModel).quitting {
		t.Error("unexpected quit on unbound key")
	}
}

func TestEventAppendsLogAndRefreshesWorkers(t *testing.T) {
	lister := &fakeLister{rows: []*models.Worker{
		testWorker("alpha", models.WorkerStatusAvailable, 0, 2),
	}}
	m := NewWatch(lister, nil)

	lister.rows = []*models.Worker{
		testWorker("alpha", models.WorkerStatusBusy, 2, 2),
	}

	ev := events.Event{
		Type:      events.EventTaskDelegated,
		TaskID:    "t1",
		Worker:    "alpha",
		Timestamp: time.Now(),
	}
	next, _ := m.Update(eventMsg(ev))
	got := next.(WatchModel)

	if len(got.log) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(got.log))
	}
	if !strings.Contains(got.log[0].text, "delegated to alpha") {
		t.Errorf("unexpected log line %q", got.log[0].text)
	}
	if got.rows[0].Status != models.WorkerStatusBusy {
		t.Error("expected worker table to refresh on event")
	}
}

func TestEventResubscribes(t *testing.T) {
	emitter := events.NewEmitter(4)
	defer emitter.Close()

	m := NewWatch(&fakeLister{}, emitter)
	_, cmd := m.Update(eventMsg(events.Event{Type: events.EventTaskRouted}))
	if cmd == nil {
		t.Fatal("expected a follow-up event read command")
	}
}

func TestTickRefreshesWorkers(t *testing.T) {
	lister := &fakeLister{}
	m := NewWatch(lister, nil)

	lister.rows = []*models.Worker{
		testWorker("alpha", models.WorkerStatusAvailable, 0, 2),
	}
	next, cmd := m.Update(tickMsg(time.Now()))
	got := next.(WatchModel)

	if len(got.rows) != 1 {
		t.Error("expected tick to re-snapshot workers")
	}
	if cmd == nil {
		t.Error("expected tick to reschedule itself")
	}
}

func TestWindowSizeStored(t *testing.T) {
	m := NewWatch(&fakeLister{}, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := next.(WatchModel)

	if got.width != 120 || got.height != 40 {
		t.Errorf("expected 120x40, got %dx%d", got.width, got.height)
	}
}

func TestLogIsCapped(t *testing.T) {
	m := NewWatch(&fakeLister{}, nil)

	var cur tea.Model = m
	for i := 0; i < maxLogLines+25; i++ {
		cur, _ = cur.(WatchModel).Update(eventMsg(events.Event{
			Type:   events.EventStepCompleted,
			StepID: "s",
		}))
	}

	got := cur.(WatchModel)
	if len(got.log) != maxLogLines {
		t.Errorf("expected log capped at %d lines, got %d", maxLogLines, len(got.log))
	}
}

func TestEventStreamClosed(t *testing.T) {
	m := NewWatch(&fakeLister{}, nil)
	next, _ := m.Update(eventsClosedMsg{})
	got := next.(WatchModel)

	if len(got.log) != 1 || !strings.Contains(got.log[0].text, "event stream closed") {
		t.Errorf("expected closed-stream log line, got %+v", got.log)
	}
}

func TestViewShowsWorkersAndEvents(t *testing.T) {
	lister := &fakeLister{rows: []*models.Worker{
		testWorker("claude-sonnet", models.WorkerStatusAvailable, 1, 4),
		testWorker("local-cli", models.WorkerStatusError, 0, 2),
	}}
	m := NewWatch(lister, nil)

	next, _ := m.Update(eventMsg(events.Event{
		Type:      events.EventStepFailed,
		StepID:    "build",
		Error:     errors.New("exit status 2"),
		Timestamp: time.Now(),
	}))
	view := next.(WatchModel).View()

	for _, want := range []string{
		"Drover",
		"WORKER",
		"claude-sonnet",
		"local-cli",
		"available",
		"error",
		"1/4",
		"EVENTS",
		"step build failed",
		"q: quit",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewWithoutWorkers(t *testing.T) {
	m := NewWatch(&fakeLister{}, nil)
	view := m.View()

	if !strings.Contains(view, "no workers registered") {
		t.Error("expected empty-table placeholder")
	}
	if !strings.Contains(view, "waiting for events") {
		t.Error("expected empty-log placeholder")
	}
}

func TestEventText(t *testing.T) {
	tests := []struct {
		ev   events.Event
		want string
	}{
		{events.Event{Type: events.EventWorkerRegistered, Worker: "alpha"}, "worker alpha registered"},
		{events.Event{Type: events.EventWorkerStatusChanged, Worker: "alpha", Status: "busy"}, "worker alpha is now busy"},
		{events.Event{Type: events.EventWorkerLoadChanged, Worker: "alpha", Load: 2, MaxLoad: 4}, "worker alpha load 2/4"},
		{events.Event{Type: events.EventTaskDelegated, TaskID: "t1", Worker: "alpha"}, "task t1 delegated to alpha"},
		{events.Event{Type: events.EventTaskRouted, TaskID: "t1", Worker: "beta"}, "task t1 routed to beta"},
		{events.Event{Type: events.EventWorkflowStarted, WorkflowID: "deploy", ExecutionID: "e1"}, "workflow deploy started (run e1)"},
		{events.Event{Type: events.EventStepStarted, StepID: "build", Worker: "alpha"}, "step build started on alpha"},
		{events.Event{Type: events.EventStepCompleted, StepID: "build"}, "step build completed"},
		{events.Event{Type: events.EventStepFailed, StepID: "build", Error: errors.New("boom")}, "step build failed: boom"},
		{events.Event{Type: events.EventStepFailed, StepID: "build"}, "step build failed"},
		{events.Event{Type: events.EventWorkflowCompleted, WorkflowID: "deploy"}, "workflow deploy completed"},
		{events.Event{Type: events.EventWorkflowCancelled, WorkflowID: "deploy"}, "workflow deploy cancelled"},
		{events.Event{Type: "custom", Message: "hello"}, "hello"},
	}

	for _, tt := range tests {
		if got := eventText(tt.ev); got != tt.want {
			t.Errorf("eventText(%s) = %q, want %q", tt.ev.Type, got, tt.want)
		}
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan events.Event, 1)
	ch <- events.Event{Type: events.EventTaskRouted, TaskID: "t9"}

	msg := waitForEvent(ch)()
	ev, ok := msg.(eventMsg)
	if !ok {
		t.Fatalf("expected eventMsg, got %T", msg)
	}
	if ev.TaskID != "t9" {
		t.Errorf("expected task t9, got %q", ev.TaskID)
	}

	close(ch)
	if _, ok := waitForEvent(ch)().(eventsClosedMsg); !ok {
		t.Error("expected eventsClosedMsg after close")
	}
}

func TestStatusIconAndStyles(t *testing.T) {
	if statusIcon("available") != iconAvailable {
		t.Error("wrong icon for available")
	}
	if statusIcon("busy") != iconBusy {
		t.Error("wrong icon for busy")
	}
	if statusIcon("error") != iconError {
		t.Error("wrong icon for error")
	}
	if statusIcon("offline") != iconOffline {
		t.Error("wrong icon for offline")
	}
	if statusIcon("bogus") != iconOffline {
		t.Error("unknown status should render as offline")
	}
}
