package migrations

import (
	"database/sql"

	"github.com/pingcap/errors"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add indices for run listing",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_runs_started_at ON load_test_runs(started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_runs_status ON load_test_runs(status);
			CREATE INDEX IF NOT EXISTS idx_runs_name ON load_test_runs(name);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_runs_started_at;
			DROP INDEX IF EXISTS idx_runs_status;
			DROP INDEX IF EXISTS idx_runs_name;
		`,
	},
	{
		Version: 2,
		Name:    "Add composite indexes for iteration queries",
		Up: `
			-- Outcome breakdown per run
			CREATE INDEX IF NOT EXISTS idx_iterations_run_outcome ON iteration_metrics(run_id, outcome);

			-- Per virtual user timelines
			CREATE INDEX IF NOT EXISTS idx_iterations_run_vu ON iteration_metrics(run_id, vu, iteration);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_iterations_run_outcome;
			DROP INDEX IF EXISTS idx_iterations_run_vu;
		`,
	},
}

// InitSchema creates all tables
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS load_test_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		shape TEXT NOT NULL,
		base_url TEXT NOT NULL,
		vus INTEGER NOT NULL,
		duration_sec REAL NOT NULL DEFAULT 0,
		iterations_limit INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL,
		iterations_total INTEGER DEFAULT 0,
		iterations_success INTEGER DEFAULT 0,
		order_calls INTEGER DEFAULT 0,
		checks_passed INTEGER DEFAULT 0,
		checks_failed INTEGER DEFAULT 0,
		avg_duration_ms REAL DEFAULT 0,
		min_duration_ms INTEGER DEFAULT 0,
		max_duration_ms INTEGER DEFAULT 0,
		p50_duration_ms INTEGER DEFAULT 0,
		p95_duration_ms INTEGER DEFAULT 0,
		p99_duration_ms INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS iteration_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		vu INTEGER NOT NULL,
		iteration INTEGER NOT NULL,
		product_code TEXT NOT NULL,
		outcome TEXT NOT NULL,
		cart_status INTEGER DEFAULT 0,
		order_status INTEGER DEFAULT 0,
		order_number TEXT,
		duration_ms INTEGER NOT NULL,
		error_message TEXT,
		FOREIGN KEY (run_id) REFERENCES load_test_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_iterations_run_id ON iteration_metrics(run_id);
	CREATE INDEX IF NOT EXISTS idx_iterations_elapsed ON iteration_metrics(run_id, elapsed_ms);

	CREATE TABLE IF NOT EXISTS check_results (
		run_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		passes INTEGER NOT NULL DEFAULT 0,
		fails INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, name),
		FOREIGN KEY (run_id) REFERENCES load_test_runs(id) ON DELETE CASCADE
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return errors.Annotate(err, "failed to initialize schema")
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return err
	}

	// Create migrations tracking table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Annotate(err, "failed to create migrations table")
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return errors.Annotate(err, "failed to get current migration version")
	}

	// Apply pending migrations
	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(migration.Up); err != nil {
			return errors.Annotatef(err, "failed to apply migration %d (%s)", migration.Version, migration.Name)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return errors.Annotatef(err, "failed to record migration %d", migration.Version)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
