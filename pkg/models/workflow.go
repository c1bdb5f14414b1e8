package models

import "time"

// WorkflowMode defines how the steps of a workflow are scheduled.
type WorkflowMode string

const (
	// WorkflowSequential runs steps in declared order, halting on failure.
	WorkflowSequential WorkflowMode = "sequential"
	// WorkflowParallel runs independent steps concurrently by dependency level.
	WorkflowParallel WorkflowMode = "parallel"
	// WorkflowAdaptive funnels every step through the delegation engine.
	WorkflowAdaptive WorkflowMode = "adaptive"
)

// Valid returns true if the mode is a known value.
func (m WorkflowMode) Valid() bool {
	switch m {
	case WorkflowSequential, WorkflowParallel, WorkflowAdaptive:
		return true
	default:
		return false
	}
}

// WorkflowStep is a single unit of work within a workflow.
// Steps are immutable once the workflow is registered.
type WorkflowStep struct {
	// ID is the step identifier, unique within the workflow.
	ID string `json:"id" yaml:"id"`
	// Description is what the step asks a worker to do.
	Description string `json:"description" yaml:"description"`
	// Type is the kind of work the step represents.
	Type TaskType `json:"type" yaml:"type"`
	// DependsOn lists step IDs that must complete before this step.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`
	// Worker optionally names a preferred worker for this step.
	Worker string `json:"worker,omitempty" yaml:"worker"`
	// Metadata carries step-level key/value pairs into the task.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata"`
}

// Workflow is a declared graph of steps executed under one mode.
type Workflow struct {
	// ID is the unique identifier for this workflow.
	ID string `json:"id" yaml:"id"`
	// Name is the human-readable workflow name.
	Name string `json:"name" yaml:"name"`
	// Mode selects sequential, parallel, or adaptive execution.
	Mode WorkflowMode `json:"mode" yaml:"mode"`
	// Steps are the units of work, with their dependencies.
	Steps []WorkflowStep `json:"steps" yaml:"steps"`
}

// ExecutionStatus represents the state of a workflow run.
type ExecutionStatus string

const (
	// ExecutionPending indicates the run has been created but not started.
	ExecutionPending ExecutionStatus = "pending"
	// ExecutionRunning indicates steps are being executed.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionCompleted indicates every step completed successfully.
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed indicates at least one step failed.
	ExecutionFailed ExecutionStatus = "failed"
	// ExecutionCancelled indicates the run was cancelled before finishing.
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionPending, ExecutionRunning, ExecutionCompleted,
		ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// ExecutionContext carries run-scoped state shared across steps.
type ExecutionContext struct {
	// SessionID identifies the run for tracing.
	SessionID string `json:"session_id"`
	// WorkDir is the working directory workers should operate in.
	WorkDir string `json:"work_dir,omitempty"`
	// Memory is shared key/value state steps can read and write.
	Memory map[string]string `json:"memory,omitempty"`
}

// WorkflowExecution is the record of one workflow run.
// It is mutated only by the workflow executor and discarded after the run;
// the history store keeps a summary row, not this object.
type WorkflowExecution struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// WorkflowID is the workflow that was executed.
	WorkflowID string `json:"workflow_id"`
	// Status is the current state of the run.
	Status ExecutionStatus `json:"status"`
	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the run reached a terminal state.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	// CompletedSteps lists step IDs that completed, in completion order.
	CompletedSteps []string `json:"completed_steps,omitempty"`
	// FailedSteps lists step IDs that failed, in failure order.
	FailedSteps []string `json:"failed_steps,omitempty"`
	// Results maps step ID to the worker output for completed steps.
	Results map[string]string `json:"results,omitempty"`
	// Errors maps step ID to the failure message for failed steps.
	Errors map[string]string `json:"errors,omitempty"`
	// Context is the run-scoped shared state.
	Context ExecutionContext `json:"context"`
}
