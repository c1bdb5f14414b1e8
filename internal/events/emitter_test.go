package events

import (
	"testing"
	"time"
)

func TestEmitterDeliversEvents(t *testing.T) {
	em := NewEmitter(4)

	em.Publish(Event{Type: EventTaskDelegated, TaskID: "task-1", Worker: "alpha"})

	select {
	case got := <-em.Events():
		if got.Type != EventTaskDelegated {
			t.Errorf("expected type %s, got %s", EventTaskDelegated, got.Type)
		}
		if got.TaskID != "task-1" {
			t.Errorf("expected task-1, got %s", got.TaskID)
		}
		if got.Timestamp.IsZero() {
			t.Error("expected Publish to stamp the event timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event on the channel")
	}
}

func TestEmitterPreservesTimestamp(t *testing.T) {
	em := NewEmitter(1)
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	em.Publish(Event{Type: EventWorkerRegistered, Worker: "alpha", Timestamp: stamp})

	got := <-em.Events()
	if !got.Timestamp.Equal(stamp) {
		t.Errorf("expected timestamp %v preserved, got %v", stamp, got.Timestamp)
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	em := NewEmitter(1)

	// Fill the buffer; nobody is draining.
	em.Publish(Event{Type: EventStepStarted, StepID: "a"})
	// This one cannot be delivered and should be dropped after the timeout.
	em.Publish(Event{Type: EventStepStarted, StepID: "b"})

	if got := em.DroppedCount(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}

	// The first event is still deliverable.
	select {
	case got := <-em.Events():
		if got.StepID != "a" {
			t.Errorf("expected step a, got %s", got.StepID)
		}
	default:
		t.Fatal("expected the buffered event to remain available")
	}
}

func TestEmitterCloseEndsRange(t *testing.T) {
	em := NewEmitter(2)
	em.Publish(Event{Type: EventWorkflowStarted, ExecutionID: "run-1"})
	em.Close()

	var seen int
	for range em.Events() {
		seen++
	}
	if seen != 1 {
		t.Errorf("expected to drain 1 event before close, got %d", seen)
	}
}
