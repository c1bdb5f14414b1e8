package delegation

import (
	"errors"
	"fmt"
)

// ErrEngineClosed is returned when a task is delegated after Shutdown.
var ErrEngineClosed = errors.New("delegation engine is shut down")

// DelegationExhaustedError reports that a task was attempted and failed on
// every worker the engine was willing to try. Fallback is empty when no
// second attempt was made.
type DelegationExhaustedError struct {
	TaskID          string
	Worker          string
	Failure         string
	Fallback        string
	FallbackFailure string
}

func (e *DelegationExhaustedError) Error() string {
	if e.Fallback == "" {
		return fmt.Sprintf("task %s exhausted delegation attempts: worker %s failed: %s",
			e.TaskID, e.Worker, e.Failure)
	}
	return fmt.Sprintf("task %s exhausted delegation attempts: worker %s failed: %s; fallback %s failed: %s",
		e.TaskID, e.Worker, e.Failure, e.Fallback, e.FallbackFailure)
}
