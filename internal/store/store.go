// Package store persists curate-run history and per-file records in SQLite.
// The store is an operator convenience behind the status command; a store
// failure is logged by callers and never aborts downloads.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the database at dbPath and applies
// migrations.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("store initialized", "path", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var applied int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		return fmt.Errorf("counting applied migrations: %w", err)
	}

	for i := applied; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// CreateRun inserts a new CurateRun and sets its ID.
func (s *Store) CreateRun(run *CurateRun) error {
	const query = `
		INSERT INTO curate_runs (
			job, start_time, end_time, windows_total, windows_failed,
			downloaded, skipped, failed, bytes, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Job, run.StartTime, run.EndTime, run.WindowsTotal, run.WindowsFailed,
		run.Downloaded, run.Skipped, run.Failed, run.Bytes, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert curate run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun updates an existing CurateRun by ID.
func (s *Store) UpdateRun(run *CurateRun) error {
	const query = `
		UPDATE curate_runs SET
			job = ?, start_time = ?, end_time = ?, windows_total = ?,
			windows_failed = ?, downloaded = ?, skipped = ?, failed = ?,
			bytes = ?, status = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.Job, run.StartTime, run.EndTime, run.WindowsTotal, run.WindowsFailed,
		run.Downloaded, run.Skipped, run.Failed, run.Bytes, run.Status,
		run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update curate run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("curate run not found: %d", run.ID)
	}
	return nil
}

// ListRuns retrieves recent runs, newest first, optionally filtered by job.
func (s *Store) ListRuns(job string, limit int) ([]CurateRun, error) {
	query := `
		SELECT id, job, start_time, end_time, windows_total, windows_failed,
		       downloaded, skipped, failed, bytes, status, error_message
		FROM curate_runs
	`
	var args []interface{}

	if job != "" {
		query += " WHERE job = ?"
		args = append(args, job)
	}
	query += " ORDER BY start_time DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query curate runs: %w", err)
	}
	defer rows.Close()

	var runs []CurateRun
	for rows.Next() {
		run := CurateRun{}
		err := rows.Scan(
			&run.ID, &run.Job, &run.StartTime, &run.EndTime, &run.WindowsTotal,
			&run.WindowsFailed, &run.Downloaded, &run.Skipped, &run.Failed,
			&run.Bytes, &run.Status, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan curate run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating curate runs: %w", err)
	}
	return runs, nil
}

// UpsertFileRecord inserts or replaces a FileRecord keyed on (job, path).
func (s *Store) UpsertFileRecord(rec *FileRecord) error {
	const query = `
		INSERT INTO file_records (job, path, url, size, sha256, downloaded_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job, path) DO UPDATE SET
			url = excluded.url, size = excluded.size, sha256 = excluded.sha256,
			downloaded_at = excluded.downloaded_at, run_id = excluded.run_id
	`

	result, err := s.db.Exec(
		query,
		rec.Job, rec.Path, rec.URL, rec.Size, rec.SHA256, rec.DownloadedAt, rec.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert file record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil && id != 0 {
		rec.ID = id
	}
	return nil
}

// CountFileRecords returns the number of recorded files for a job.
func (s *Store) CountFileRecords(job string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM file_records WHERE job = ?", job).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count file records: %w", err)
	}
	return count, nil
}

// SumFileSize returns the total recorded bytes for a job.
func (s *Store) SumFileSize(job string) (int64, error) {
	var total int64
	err := s.db.QueryRow("SELECT COALESCE(SUM(size), 0) FROM file_records WHERE job = ?", job).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum file size: %w", err)
	}
	return total, nil
}
