package workflow

import (
	"fmt"
	"strings"
)

// UnmetDependencyError indicates a step was scheduled before every step it
// depends on had completed.
type UnmetDependencyError struct {
	// StepID is the step that could not run.
	StepID string
	// Missing lists the dependencies that have not completed.
	Missing []string
}

func (e *UnmetDependencyError) Error() string {
	return fmt.Sprintf("step %s has unmet dependencies: [%s]", e.StepID, strings.Join(e.Missing, ", "))
}

// CircularDependencyError indicates the dependency graph cannot make
// progress: the remaining steps all wait on each other.
type CircularDependencyError struct {
	// Remaining lists the step IDs that could not be placed in any level.
	Remaining []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency among steps [%s]", strings.Join(e.Remaining, ", "))
}
