package store

// Schema migrations are applied in order; the applied count is tracked in
// schema_migrations so adding a new entry upgrades existing databases.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS curate_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP,
		windows_total INTEGER NOT NULL DEFAULT 0,
		windows_failed INTEGER NOT NULL DEFAULT 0,
		downloaded INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS file_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job TEXT NOT NULL,
		path TEXT NOT NULL,
		url TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		sha256 TEXT NOT NULL DEFAULT '',
		downloaded_at TIMESTAMP NOT NULL,
		run_id INTEGER NOT NULL,
		UNIQUE(job, path)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_curate_runs_job ON curate_runs(job, start_time DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_file_records_job ON file_records(job)`,
}
