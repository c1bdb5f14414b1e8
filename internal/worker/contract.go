// Package worker defines the contract every execution backend implements
// and the adapters that satisfy it. The registry, delegation engine, router,
// and workflow executor reach backends only through this contract.
package worker

import (
	"context"

	"github.com/seralin/drover/pkg/models"
)

// AuthStatus reports a backend's authentication state.
// The registry reads it for display; it never mutates it.
type AuthStatus struct {
	// Authenticated is true when the backend can make calls.
	Authenticated bool
	// Method names how authentication happens (e.g., "api_key", "bedrock", "cli").
	Method string
	// Detail carries an optional human-readable note.
	Detail string
}

// Contract is the interface between the engine and an execution backend.
// ExecuteTask returns an error only when the call could not be made; a call
// that ran and failed comes back as a TaskResult with Success=false.
type Contract interface {
	// Initialize prepares the backend for task execution.
	Initialize(ctx context.Context) error

	// Shutdown releases backend resources.
	Shutdown(ctx context.Context) error

	// ExecuteTask runs a task on the backend and returns its result.
	ExecuteTask(ctx context.Context, task *models.Task) (*models.TaskResult, error)

	// CheckHealth reports whether the backend is currently usable.
	CheckHealth(ctx context.Context) bool

	// Capabilities returns the skill tags this backend advertises.
	Capabilities() []string

	// AuthStatus returns the backend's authentication state.
	AuthStatus() AuthStatus
}
