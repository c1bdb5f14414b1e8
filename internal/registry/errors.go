package registry

import (
	"fmt"
	"strings"

	"github.com/seralin/drover/pkg/models"
)

// WorkerNotFoundError indicates a request named a worker that was never
// registered.
type WorkerNotFoundError struct {
	// Name is the unknown worker name.
	Name string
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker not found: %s", e.Name)
}

// WorkerUnavailableError indicates the named worker exists but is not
// accepting tasks right now.
type WorkerUnavailableError struct {
	// Name is the worker that rejected the task.
	Name string
	// Status is the worker's status at rejection time.
	Status models.WorkerStatus
	// CurrentLoad and MaxLoad describe the load at rejection time.
	CurrentLoad int
	MaxLoad     int
}

func (e *WorkerUnavailableError) Error() string {
	return fmt.Sprintf("worker %s unavailable: status=%s load=%d/%d",
		e.Name, e.Status, e.CurrentLoad, e.MaxLoad)
}

// NoAvailableWorkerError indicates no registered worker could serve a
// selection request. Selection failures are never retried: there is nothing
// to retry against.
type NoAvailableWorkerError struct {
	// Required lists the capability tags the selection asked for, if any.
	Required []string
}

func (e *NoAvailableWorkerError) Error() string {
	if len(e.Required) == 0 {
		return "no available worker"
	}
	return fmt.Sprintf("no available worker with capabilities [%s]", strings.Join(e.Required, ", "))
}

// TimeoutError indicates the waiting side of a worker call hit its deadline.
// The underlying worker process or request is not guaranteed to have stopped;
// terminating it is the worker contract's responsibility.
type TimeoutError struct {
	// Worker is the worker whose call timed out.
	Worker string
	// TaskID is the task that was executing.
	TaskID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out on worker %s", e.TaskID, e.Worker)
}
