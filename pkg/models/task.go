package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been dispatched.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusDelegated indicates the task has been assigned to a worker.
	TaskStatusDelegated TaskStatus = "delegated"
	// TaskStatusInProgress indicates a worker is executing the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before completion.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusDelegated, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true once the task can no longer transition.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskType categorizes the kind of work a task represents.
// The delegation engine maps types to required capability tags.
type TaskType string

const (
	// TaskTypeCoding is code writing or modification work.
	TaskTypeCoding TaskType = "coding"
	// TaskTypeResearch is information gathering work.
	TaskTypeResearch TaskType = "research"
	// TaskTypeAnalysis is data or document analysis work.
	TaskTypeAnalysis TaskType = "analysis"
	// TaskTypeMultimodal is work involving images or other media.
	TaskTypeMultimodal TaskType = "multimodal"
	// TaskTypeReasoning is multi-step logical reasoning work.
	TaskTypeReasoning TaskType = "reasoning"
	// TaskTypeGeneral is work with no specific capability demands.
	TaskTypeGeneral TaskType = "general"
)

// Valid returns true if the type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeCoding, TaskTypeResearch, TaskTypeAnalysis,
		TaskTypeMultimodal, TaskTypeReasoning, TaskTypeGeneral:
		return true
	default:
		return false
	}
}

// Task represents a unit of work to be routed to a worker.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Description is what the worker is asked to do.
	Description string `json:"description"`
	// Type is the kind of work this task represents.
	Type TaskType `json:"type"`
	// Priority orders tasks; 3 and above is treated as high priority.
	Priority int `json:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Metadata carries caller-defined key/value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task last changed state.
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskResult is what a worker returns for an executed task.
// Success=false distinguishes "attempted and failed" from errors raised
// before any worker was called.
type TaskResult struct {
	// TaskID is the task this result belongs to.
	TaskID string `json:"task_id"`
	// Worker is the name of the worker that produced the result.
	Worker string `json:"worker"`
	// Success indicates whether the worker completed the task.
	Success bool `json:"success"`
	// Output is the worker's output on success.
	Output string `json:"output,omitempty"`
	// Error is the failure message when Success is false.
	Error string `json:"error,omitempty"`
	// Duration is how long the worker call took.
	Duration time.Duration `json:"duration"`
	// CompletedAt is when the worker call returned.
	CompletedAt time.Time `json:"completed_at"`
}
