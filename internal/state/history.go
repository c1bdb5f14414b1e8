package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seralin/drover/pkg/models"
)

// defaultListLimit is used when a caller asks for a non-positive row count.
const defaultListLimit = 20

// RouteRecord is one direct-routing outcome.
type RouteRecord struct {
	// TaskID is the routed task.
	TaskID string `json:"task_id"`
	// Worker is the worker that handled (or last attempted) the task.
	Worker string `json:"worker"`
	// Success is whether the route ultimately succeeded.
	Success bool `json:"success"`
	// Attempts is how many workers were tried, including fallbacks.
	Attempts int `json:"attempts"`
	// Cached is whether the route was served from the route cache.
	Cached bool `json:"cached"`
	// RoutedAt is when the route finished.
	RoutedAt time.Time `json:"routed_at"`
}

// ExecutionRecord is the stored summary of one workflow run.
type ExecutionRecord struct {
	// ID is the execution id.
	ID string `json:"id"`
	// WorkflowID is the workflow that ran.
	WorkflowID string `json:"workflow_id"`
	// Mode is the execution mode the run used.
	Mode string `json:"mode"`
	// Status is the terminal status.
	Status string `json:"status"`
	// CompletedSteps counts steps that completed.
	CompletedSteps int `json:"completed_steps"`
	// FailedSteps counts steps that failed.
	FailedSteps int `json:"failed_steps"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the run reached a terminal state, if it did.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// RecordDecision appends a delegation decision to the history.
func (db *DB) RecordDecision(d models.DelegationDecision) error {
	alternatives, err := json.Marshal(d.Alternatives)
	if err != nil {
		return fmt.Errorf("marshal alternatives: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO delegations (task_id, worker, strategy, reason, confidence, alternatives, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.TaskID, d.Worker, d.Strategy, d.Reason, d.Confidence, string(alternatives), formatTime(d.DecidedAt))
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecentDecisions returns the newest delegation decisions, newest first.
func (db *DB) RecentDecisions(limit int) ([]models.DelegationDecision, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.Query(`
		SELECT task_id, worker, strategy, reason, confidence, alternatives, decided_at
		FROM delegations ORDER BY decided_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []models.DelegationDecision
	for rows.Next() {
		var d models.DelegationDecision
		var alternatives sql.NullString
		var decidedAt string
		if err := rows.Scan(&d.TaskID, &d.Worker, &d.Strategy, &d.Reason, &d.Confidence, &alternatives, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if alternatives.Valid && alternatives.String != "" {
			if err := json.Unmarshal([]byte(alternatives.String), &d.Alternatives); err != nil {
				return nil, fmt.Errorf("unmarshal alternatives: %w", err)
			}
		}
		d.DecidedAt, _ = parseTime(decidedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordRoute appends a direct-routing outcome to the history.
func (db *DB) RecordRoute(r RouteRecord) error {
	_, err := db.Exec(`
		INSERT INTO routes (task_id, worker, success, attempts, cached, routed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.TaskID, r.Worker, boolInt(r.Success), r.Attempts, boolInt(r.Cached), formatTime(r.RoutedAt))
	if err != nil {
		return fmt.Errorf("record route: %w", err)
	}
	return nil
}

// RecentRoutes returns the newest route outcomes, newest first.
func (db *DB) RecentRoutes(limit int) ([]RouteRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.Query(`
		SELECT task_id, worker, success, attempts, cached, routed_at
		FROM routes ORDER BY routed_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var out []RouteRecord
	for rows.Next() {
		var r RouteRecord
		var success, cached int
		var routedAt string
		if err := rows.Scan(&r.TaskID, &r.Worker, &success, &r.Attempts, &cached, &routedAt); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		r.Success = success != 0
		r.Cached = cached != 0
		r.RoutedAt, _ = parseTime(routedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordExecution stores the summary of a finished workflow run.
// Re-recording the same execution id replaces the earlier row.
func (db *DB) RecordExecution(x *models.WorkflowExecution, mode models.WorkflowMode) error {
	if x == nil {
		return fmt.Errorf("record execution: nil execution")
	}

	var endedAt any
	if x.EndedAt != nil {
		endedAt = formatTime(*x.EndedAt)
	}

	_, err := db.Exec(`
		INSERT OR REPLACE INTO executions
			(id, workflow_id, mode, status, completed_steps, failed_steps, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, x.ID, x.WorkflowID, string(mode), string(x.Status),
		len(x.CompletedSteps), len(x.FailedSteps), formatTime(x.StartedAt), endedAt)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// RecentExecutions returns the newest workflow run summaries, newest first.
func (db *DB) RecentExecutions(limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.Query(`
		SELECT id, workflow_id, mode, status, completed_steps, failed_steps, started_at, ended_at
		FROM executions ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var x ExecutionRecord
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&x.ID, &x.WorkflowID, &x.Mode, &x.Status, &x.CompletedSteps, &x.FailedSteps, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		x.StartedAt, _ = parseTime(startedAt)
		x.EndedAt = parseNullableTime(endedAt)
		out = append(out, x)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes history rows older than the given age across all
// tables. Returns the total number of rows deleted.
func (db *DB) PurgeOlderThan(age time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-age))

	var total int64
	err := db.Transaction(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM delegations WHERE decided_at < ?",
			"DELETE FROM routes WHERE routed_at < ?",
			"DELETE FROM executions WHERE started_at < ?",
		} {
			res, err := tx.Exec(stmt, cutoff)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return total, nil
}

// boolInt converts a bool to the 0/1 form SQLite stores.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
