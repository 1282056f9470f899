// Package persist provides the SQLite-backed append-only logs (jobs,
// attempts, alerts) that back the pipeline's persistence port, plus the
// rate-track table the limiter restores from on restart.
package persist

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection holding the pipeline's durable
// state: three append-only logs keyed by a monotonic sequence number
// (jobs, attempts, alerts) and a rate_tracks snapshot table.
type Store struct {
	*sql.DB
	path string
}

// Open opens or creates the SQLite store at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create persist directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma %q: %w", pragma, err)
		}
	}

	s := &Store{DB: db, path: path}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	schema := `
	-- jobs is the append-only log of EmailJob lifecycle snapshots. Each
	-- row is a point-in-time copy, not an update-in-place; recovery
	-- replays the latest row per job_id.
	CREATE TABLE IF NOT EXISTS jobs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		queue_name TEXT NOT NULL,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		account_id TEXT NOT NULL,
		to_address TEXT NOT NULL,
		from_address TEXT NOT NULL,
		subject TEXT NOT NULL,
		body_text TEXT,
		body_html TEXT,
		headers TEXT,
		campaign_id TEXT,
		account_age_days INTEGER NOT NULL,
		attempts_made INTEGER NOT NULL DEFAULT 0,
		scheduled_at DATETIME NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_job_id ON jobs(job_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

	-- attempts is the append-only log of self-healing attempts (one row
	-- per scheduled retry, recovery or escalation).
	CREATE TABLE IF NOT EXISTS attempts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		attempt_number INTEGER NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error_kind TEXT,
		delay_ms_before INTEGER NOT NULL DEFAULT 0,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_job_id ON attempts(job_id);

	-- alerts is the append-only log of raised/resolved alert transitions.
	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		component TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		transition TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_rule ON alerts(component, rule_id);

	-- rate_tracks is a shutdown snapshot of limiter state, keyed by
	-- (domain, account_id); used only to warm the limiter's in-memory
	-- map on restart, never read on the hot path.
	CREATE TABLE IF NOT EXISTS rate_tracks (
		domain TEXT NOT NULL,
		account_id TEXT NOT NULL,
		account_age_days INTEGER NOT NULL DEFAULT 0,
		minute_window_start DATETIME NOT NULL,
		hour_window_start DATETIME NOT NULL,
		day_window_start DATETIME NOT NULL,
		sent_this_minute INTEGER NOT NULL DEFAULT 0,
		sent_this_hour INTEGER NOT NULL DEFAULT 0,
		sent_today INTEGER NOT NULL DEFAULT 0,
		failure_count_total INTEGER NOT NULL DEFAULT 0,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		last_send_at DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (domain, account_id)
	);
	`

	_, err := s.Exec(schema)
	return err
}

// SqlConn returns a go-zero sqlx.SqlConn wrapping the underlying database.
// This provides automatic circuit breaking and OpenTelemetry tracing on
// every query issued against the store.
func (s *Store) SqlConn() sqlx.SqlConn {
	return sqlx.NewSqlConnFromDB(s.DB, sqlx.WithAcceptable(sqliteAcceptable))
}

// sqliteAcceptable tells the circuit breaker that "database is locked"
// errors are transient (SQLite WAL contention) and should not trip it.
func sqliteAcceptable(err error) bool {
	return err == nil || strings.Contains(err.Error(), "database is locked")
}
