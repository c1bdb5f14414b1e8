package models

import "time"

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	// WorkerStatusOffline indicates the worker has not been initialized
	// or has been shut down.
	WorkerStatusOffline WorkerStatus = "offline"
	// WorkerStatusAvailable indicates the worker is accepting tasks.
	WorkerStatusAvailable WorkerStatus = "available"
	// WorkerStatusBusy indicates the worker is at its load limit.
	WorkerStatusBusy WorkerStatus = "busy"
	// WorkerStatusError indicates the worker failed initialization or a health check.
	WorkerStatusError WorkerStatus = "error"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusOffline, WorkerStatusAvailable, WorkerStatusBusy, WorkerStatusError:
		return true
	default:
		return false
	}
}

// Worker represents a registered execution backend.
// Load and status transitions are owned by the registry; other components
// read workers as snapshots.
type Worker struct {
	// Name is the unique identifier for this worker.
	Name string `json:"name"`
	// Type is the declared backend type (e.g., "cli", "anthropic").
	Type string `json:"type"`
	// Status is the current state of the worker.
	Status WorkerStatus `json:"status"`
	// Capabilities is the set of skill tags this worker advertises.
	Capabilities []string `json:"capabilities,omitempty"`
	// CurrentLoad is the number of tasks currently executing.
	CurrentLoad int `json:"current_load"`
	// MaxLoad is the maximum number of concurrent tasks.
	MaxLoad int `json:"max_load"`
	// LastActivity is when the worker last started or finished a task.
	LastActivity time.Time `json:"last_activity"`
}

// LoadRatio returns CurrentLoad divided by MaxLoad.
// A worker with MaxLoad 0 is treated as fully loaded.
func (w *Worker) LoadRatio() float64 {
	if w.MaxLoad <= 0 {
		return 1.0
	}
	return float64(w.CurrentLoad) / float64(w.MaxLoad)
}

// Accepting returns true if the worker can take another task right now.
func (w *Worker) Accepting() bool {
	return w.Status == WorkerStatusAvailable && w.CurrentLoad < w.MaxLoad
}

// HasCapability returns true if the worker declares the given tag.
func (w *Worker) HasCapability(tag string) bool {
	for _, c := range w.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// CapabilityOverlap returns how many of the required tags the worker declares.
func (w *Worker) CapabilityOverlap(required []string) int {
	n := 0
	for _, tag := range required {
		if w.HasCapability(tag) {
			n++
		}
	}
	return n
}
