package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(filepath.Join(t.TempDir(), "curator.db"), logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndUpdateRun(t *testing.T) {
	s := newTestStore(t)

	run := &CurateRun{
		Job:       "cl61-ingest",
		StartTime: time.Now().UTC(),
		Status:    "running",
	}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("CreateRun did not set ID")
	}

	run.Status = "completed"
	run.Downloaded = 12
	run.Skipped = 3
	run.Bytes = 4096
	run.EndTime = time.Now().UTC()
	if err := s.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	runs, err := s.ListRuns("cl61-ingest", 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Status != "completed" || runs[0].Downloaded != 12 || runs[0].Bytes != 4096 {
		t.Errorf("run not persisted correctly: %+v", runs[0])
	}
}

func TestUpdateMissingRun(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpdateRun(&CurateRun{ID: 999, Status: "completed"}); err == nil {
		t.Error("expected error updating nonexistent run")
	}
}

func TestListRunsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := &CurateRun{Job: "j", StartTime: base.Add(time.Duration(i) * time.Hour), Status: "completed"}
		if err := s.CreateRun(run); err != nil {
			t.Fatalf("CreateRun %d: %v", i, err)
		}
	}

	runs, err := s.ListRuns("", 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartTime.After(runs[i-1].StartTime) {
			t.Error("runs not newest-first")
		}
	}
}

func TestFileRecordUpsert(t *testing.T) {
	s := newTestStore(t)

	rec := &FileRecord{
		Job:          "cl61-ingest",
		Path:         "/archive/cl61_files/2024/07/01/a.nc",
		URL:          "https://storage.example.org/a.nc",
		Size:         100,
		SHA256:       "abc",
		DownloadedAt: time.Now().UTC(),
		RunID:        1,
	}
	if err := s.UpsertFileRecord(rec); err != nil {
		t.Fatalf("UpsertFileRecord: %v", err)
	}

	// Same (job, path) replaces instead of duplicating.
	rec.Size = 200
	if err := s.UpsertFileRecord(rec); err != nil {
		t.Fatalf("UpsertFileRecord (again): %v", err)
	}

	count, err := s.CountFileRecords("cl61-ingest")
	if err != nil {
		t.Fatalf("CountFileRecords: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	total, err := s.SumFileSize("cl61-ingest")
	if err != nil {
		t.Fatalf("SumFileSize: %v", err)
	}
	if total != 200 {
		t.Errorf("total size = %d, want 200", total)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "curator.db")

	s1, err := New(path, logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.CreateRun(&CurateRun{Job: "j", StartTime: time.Now(), Status: "running"}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	_ = s1.Close()

	// Reopening must not re-run migrations destructively.
	s2, err := New(path, logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	runs, err := s2.ListRuns("j", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("data lost across reopen: %d runs", len(runs))
	}
}
