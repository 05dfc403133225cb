package store

import "time"

// CurateRun records one job execution.
type CurateRun struct {
	ID            int64
	Job           string
	StartTime     time.Time
	EndTime       time.Time
	WindowsTotal  int
	WindowsFailed int
	Downloaded    int
	Skipped       int
	Failed        int
	Bytes         int64
	Status        string // "completed", "partial", "skipped", "running"
	ErrorMessage  string
}

// FileRecord tracks one downloaded file.
type FileRecord struct {
	ID           int64
	Job          string
	Path         string // absolute destination path
	URL          string
	Size         int64
	SHA256       string
	DownloadedAt time.Time
	RunID        int64
}
