package models

import "time"

// DelegationDecision records which worker was chosen for a task and why.
// One decision is produced per delegation attempt.
type DelegationDecision struct {
	// TaskID is the task the decision was made for.
	TaskID string `json:"task_id"`
	// Worker is the name of the chosen worker.
	Worker string `json:"worker"`
	// Reason is a human-readable explanation of the choice.
	Reason string `json:"reason"`
	// Confidence is the engine's confidence in the choice, in [0,1].
	Confidence float64 `json:"confidence"`
	// Alternatives lists the next-best worker names, in order.
	Alternatives []string `json:"alternatives,omitempty"`
	// Strategy is the selection strategy that produced the decision.
	Strategy string `json:"strategy"`
	// DecidedAt is when the decision was made.
	DecidedAt time.Time `json:"decided_at"`
}

// PerformanceMetric is the cumulative execution record for one worker.
// It is updated exactly once per completed attempt and never reset.
type PerformanceMetric struct {
	// Worker is the name of the worker these numbers describe.
	Worker string `json:"worker"`
	// SuccessRate is successful attempts over total attempts, in [0,1].
	SuccessRate float64 `json:"success_rate"`
	// AvgExecutionTime is the mean duration of successful attempts, in milliseconds.
	AvgExecutionTime float64 `json:"avg_execution_time_ms"`
	// TotalTasks is the number of attempts recorded.
	TotalTasks int `json:"total_tasks"`
}
