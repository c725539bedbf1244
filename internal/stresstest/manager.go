package stresstest

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pingcap/errors"

	"github.com/studiowebux/checkoutload/internal/migrations"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, uuid, name, shape, base_url, vus, duration_sec, iterations_limit, started_at, completed_at, status,
	COALESCE(iterations_total, 0), COALESCE(iterations_success, 0), COALESCE(order_calls, 0),
	COALESCE(checks_passed, 0), COALESCE(checks_failed, 0),
	COALESCE(avg_duration_ms, 0), COALESCE(min_duration_ms, 0), COALESCE(max_duration_ms, 0),
	COALESCE(p50_duration_ms, 0), COALESCE(p95_duration_ms, 0), COALESCE(p99_duration_ms, 0)`

// Manager handles load test data persistence
type Manager struct {
	db *sql.DB
}

// NewManager creates a new load test manager
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open database")
	}
	// A single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	m := &Manager{db: db}

	// Run database migrations (includes schema initialization)
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "failed to run migrations")
	}

	return m, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun creates a new load test run record
func (m *Manager) CreateRun(run *Run) error {
	result, err := m.db.Exec(`
		INSERT INTO load_test_runs
		(uuid, name, shape, base_url, vus, duration_sec, iterations_limit, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.UUID, run.Name, run.Shape, run.BaseURL, run.VUs, run.Duration.Seconds(), run.IterationsLimit,
		run.StartedAt, run.Status)
	if err != nil {
		return errors.Annotate(err, "failed to create run")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return errors.Annotate(err, "failed to get last insert id")
	}
	run.ID = id
	return nil
}

// UpdateRun updates a load test run record
func (m *Manager) UpdateRun(run *Run) error {
	_, err := m.db.Exec(`
		UPDATE load_test_runs
		SET completed_at = ?, status = ?, iterations_total = ?, iterations_success = ?, order_calls = ?,
		    checks_passed = ?, checks_failed = ?, avg_duration_ms = ?, min_duration_ms = ?, max_duration_ms = ?,
		    p50_duration_ms = ?, p95_duration_ms = ?, p99_duration_ms = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.IterationsTotal, run.IterationsSuccess, run.OrderCalls,
		run.ChecksPassed, run.ChecksFailed, run.AvgDurationMs, run.MinDurationMs, run.MaxDurationMs,
		run.P50DurationMs, run.P95DurationMs, run.P99DurationMs, run.ID)
	return errors.Trace(err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var durationSec float64
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.UUID, &run.Name, &run.Shape, &run.BaseURL, &run.VUs, &durationSec,
		&run.IterationsLimit, &run.StartedAt, &completedAt, &run.Status,
		&run.IterationsTotal, &run.IterationsSuccess, &run.OrderCalls, &run.ChecksPassed, &run.ChecksFailed,
		&run.AvgDurationMs, &run.MinDurationMs, &run.MaxDurationMs,
		&run.P50DurationMs, &run.P95DurationMs, &run.P99DurationMs)
	if err != nil {
		return nil, err
	}

	run.Duration = secondsToDuration(durationSec)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	run, err := scanRun(m.db.QueryRow(`SELECT `+runColumns+` FROM load_test_runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.Annotatef(ErrRunNotFound, "id %d", id)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM load_test_runs ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Trace(err)
		}
		runs = append(runs, run)
	}
	return runs, errors.Trace(rows.Err())
}

// DeleteRun deletes a load test run with its iterations and checks
func (m *Manager) DeleteRun(id int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM iteration_metrics WHERE run_id = ?",
		"DELETE FROM check_results WHERE run_id = ?",
		"DELETE FROM load_test_runs WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return errors.Trace(err)
		}
	}
	return tx.Commit()
}

// SaveIterationsBatch saves multiple iteration metrics in a single transaction
func (m *Manager) SaveIterationsBatch(metrics []*IterationMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO iteration_metrics
		(run_id, timestamp, elapsed_ms, vu, iteration, product_code, outcome, cart_status, order_status,
		 order_number, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Annotate(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for _, metric := range metrics {
		_, err := stmt.Exec(metric.RunID, metric.Timestamp, metric.ElapsedMs, metric.VU, metric.Iteration,
			metric.ProductCode, metric.Outcome, metric.CartStatus, metric.OrderStatus,
			metric.OrderNumber, metric.DurationMs, metric.ErrorMessage)
		if err != nil {
			return errors.Annotate(err, "failed to insert iteration metric")
		}
	}

	return tx.Commit()
}

// GetIterations retrieves all iteration metrics for a run
func (m *Manager) GetIterations(runID int64) ([]*IterationMetric, error) {
	rows, err := m.db.Query(`
		SELECT id, run_id, timestamp, elapsed_ms, vu, iteration, product_code, outcome,
		       COALESCE(cart_status, 0), COALESCE(order_status, 0), COALESCE(order_number, ''),
		       duration_ms, COALESCE(error_message, '')
		FROM iteration_metrics
		WHERE run_id = ?
		ORDER BY elapsed_ms, id
	`, runID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()

	var metrics []*IterationMetric
	for rows.Next() {
		metric := &IterationMetric{}
		err := rows.Scan(&metric.ID, &metric.RunID, &metric.Timestamp, &metric.ElapsedMs,
			&metric.VU, &metric.Iteration, &metric.ProductCode, &metric.Outcome,
			&metric.CartStatus, &metric.OrderStatus, &metric.OrderNumber,
			&metric.DurationMs, &metric.ErrorMessage)
		if err != nil {
			return nil, errors.Trace(err)
		}
		metrics = append(metrics, metric)
	}
	return metrics, errors.Trace(rows.Err())
}

// SaveCheckResults replaces the check summaries of a run
func (m *Manager) SaveCheckResults(runID int64, checks []CheckSummary) error {
	tx, err := m.db.Begin()
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM check_results WHERE run_id = ?", runID); err != nil {
		return errors.Trace(err)
	}
	for _, c := range checks {
		_, err := tx.Exec("INSERT INTO check_results (run_id, name, passes, fails) VALUES (?, ?, ?, ?)",
			runID, c.Name, c.Passes, c.Fails)
		if err != nil {
			return errors.Annotatef(err, "failed to save check %q", c.Name)
		}
	}
	return tx.Commit()
}

// GetCheckResults returns the check summaries of a run
func (m *Manager) GetCheckResults(runID int64) ([]CheckSummary, error) {
	rows, err := m.db.Query(`
		SELECT name, passes, fails FROM check_results WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()

	var checks []CheckSummary
	for rows.Next() {
		var c CheckSummary
		if err := rows.Scan(&c.Name, &c.Passes, &c.Fails); err != nil {
			return nil, errors.Trace(err)
		}
		checks = append(checks, c)
	}
	return checks, errors.Trace(rows.Err())
}
