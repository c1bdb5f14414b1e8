// Package events defines the event stream emitted by the delegation engine,
// router, registry, and workflow executor. Consumers receive events over an
// explicitly constructed Emitter; there are no ambient global listeners.
package events

import (
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventWorkerRegistered indicates a worker joined the registry.
	EventWorkerRegistered EventType = "worker_registered"
	// EventWorkerStatusChanged indicates a worker's status transitioned.
	EventWorkerStatusChanged EventType = "worker_status_changed"
	// EventWorkerLoadChanged indicates a worker's load counter moved.
	EventWorkerLoadChanged EventType = "worker_load_changed"
	// EventTaskDelegated indicates the delegation engine dispatched a task.
	EventTaskDelegated EventType = "task_delegated"
	// EventTaskRouted indicates the direct router dispatched a task.
	EventTaskRouted EventType = "task_routed"
	// EventWorkflowStarted indicates a workflow run began.
	EventWorkflowStarted EventType = "workflow_started"
	// EventStepStarted indicates a workflow step was dispatched.
	EventStepStarted EventType = "step_started"
	// EventStepCompleted indicates a workflow step completed successfully.
	EventStepCompleted EventType = "step_completed"
	// EventStepFailed indicates a workflow step failed.
	EventStepFailed EventType = "step_failed"
	// EventWorkflowCompleted indicates a workflow run finished.
	EventWorkflowCompleted EventType = "workflow_completed"
	// EventWorkflowCancelled indicates a workflow run was cancelled.
	EventWorkflowCancelled EventType = "workflow_cancelled"
)

// Event represents a single engine event.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Worker is the name of the related worker, if applicable.
	Worker string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// WorkflowID is the ID of the related workflow, if applicable.
	WorkflowID string
	// ExecutionID is the ID of the related workflow run, if applicable.
	ExecutionID string
	// StepID is the ID of the related workflow step, if applicable.
	StepID string
	// Status carries the new status for status-change events.
	Status string
	// Load carries the new load for load-change events.
	Load int
	// MaxLoad carries the load limit for load-change events.
	MaxLoad int
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Publisher is the write side of the event stream.
// Components hold a Publisher and treat nil as "no subscribers".
type Publisher interface {
	Publish(Event)
}
