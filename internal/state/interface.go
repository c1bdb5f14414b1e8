// Package state provides the SQLite-backed history store for Drover.
package state

import (
	"io"
	"time"

	"github.com/seralin/drover/pkg/models"
)

// DecisionStore persists delegation decisions.
type DecisionStore interface {
	RecordDecision(d models.DelegationDecision) error
	RecentDecisions(limit int) ([]models.DelegationDecision, error)
}

// RouteStore persists direct-routing outcomes.
type RouteStore interface {
	RecordRoute(r RouteRecord) error
	RecentRoutes(limit int) ([]RouteRecord, error)
}

// ExecutionStore persists workflow run summaries.
type ExecutionStore interface {
	RecordExecution(x *models.WorkflowExecution, mode models.WorkflowMode) error
	RecentExecutions(limit int) ([]ExecutionRecord, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore is the full persistence surface the CLI works against.
// It composes focused sub-interfaces so commands can depend on only the
// slice they use, without the concrete SQLite implementation.
type HistoryStore interface {
	io.Closer
	Migrator
	DecisionStore
	RouteStore
	ExecutionStore

	// PurgeOlderThan deletes rows older than the given age, returning
	// how many were removed.
	PurgeOlderThan(age time.Duration) (int64, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore   = (*DB)(nil)
	_ Migrator       = (*DB)(nil)
	_ DecisionStore  = (*DB)(nil)
	_ RouteStore     = (*DB)(nil)
	_ ExecutionStore = (*DB)(nil)
)
