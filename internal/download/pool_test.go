package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func poolServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var inflight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "content for %s", r.URL.Path)
	}))
	return server, &peak
}

func TestPoolExecutesAllJobs(t *testing.T) {
	server, _ := poolServer(t)
	defer server.Close()

	destDir := t.TempDir()
	client := NewClient(Credentials{Username: "u", Password: "p"}, 10*time.Second, testLogger())
	pool := NewPool(client, 3, testLogger())

	var jobs []Job
	for i := 0; i < 10; i++ {
		jobs = append(jobs, Job{Options: FetchOptions{
			URL:      fmt.Sprintf("%s/file-%d", server.URL, i),
			DestDir:  destDir,
			Filename: fmt.Sprintf("file-%d.nc", i),
		}})
	}

	results := pool.Execute(context.Background(), jobs)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}

	for i, r := range results {
		if r.Outcome != OutcomeDownloaded {
			t.Errorf("job %d outcome = %q, err = %v", i, r.Outcome, r.Err)
		}
		// Results preserve submit order.
		if r.Job.Options.Filename != fmt.Sprintf("file-%d.nc", i) {
			t.Errorf("result %d out of order: %s", i, r.Job.Options.Filename)
		}
	}

	entries, _ := os.ReadDir(destDir)
	if len(entries) != 10 {
		t.Errorf("%d files on disk, want 10", len(entries))
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	server, peak := poolServer(t)
	defer server.Close()

	client := NewClient(Credentials{Username: "u", Password: "p"}, 10*time.Second, testLogger())
	pool := NewPool(client, 2, testLogger())

	var jobs []Job
	for i := 0; i < 8; i++ {
		jobs = append(jobs, Job{Options: FetchOptions{
			URL:      fmt.Sprintf("%s/f%d", server.URL, i),
			DestDir:  t.TempDir(),
			Filename: "f.nc",
		}})
	}

	pool.Execute(context.Background(), jobs)
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency %d exceeds 2 workers", got)
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	client := NewClient(Credentials{}, time.Second, testLogger())
	pool := NewPool(client, 4, testLogger())

	results := pool.Execute(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("got %d results for empty batch", len(results))
	}
}

func TestPoolCancellation(t *testing.T) {
	server, _ := poolServer(t)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Credentials{Username: "u", Password: "p"}, 10*time.Second, testLogger())
	pool := NewPool(client, 2, testLogger())

	jobs := []Job{
		{Options: FetchOptions{URL: server.URL + "/a", DestDir: t.TempDir(), Filename: "a.nc"}},
		{Options: FetchOptions{URL: server.URL + "/b", DestDir: t.TempDir(), Filename: "b.nc"}},
	}

	results := pool.Execute(ctx, jobs)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for _, r := range results {
		if r.Err == nil {
			t.Error("cancelled job completed without error")
		}
	}
}

// TestPoolMixedOutcomes: one success, one skip, one HTTP failure in a single
// batch — the failure stays local to its record.
func TestPoolMixedOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(destDir, "existing.nc"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	client := NewClient(Credentials{Username: "u", Password: "p"}, 10*time.Second, testLogger())
	pool := NewPool(client, 2, testLogger())

	results := pool.Execute(context.Background(), []Job{
		{Options: FetchOptions{URL: server.URL + "/good", DestDir: destDir, Filename: "good.nc", SkipIfExists: true}},
		{Options: FetchOptions{URL: server.URL + "/whatever", DestDir: destDir, Filename: "existing.nc", SkipIfExists: true}},
		{Options: FetchOptions{URL: server.URL + "/missing", DestDir: destDir, Filename: "missing.nc", SkipIfExists: true}},
	})

	want := []Outcome{OutcomeDownloaded, OutcomeSkippedExists, OutcomeFailedHTTP}
	for i, r := range results {
		if r.Outcome != want[i] {
			t.Errorf("result %d outcome = %q, want %q", i, r.Outcome, want[i])
		}
	}

	// The skipped file is untouched.
	content, _ := os.ReadFile(filepath.Join(destDir, "existing.nc"))
	if string(content) != "old" {
		t.Errorf("existing file overwritten: %q", content)
	}
}
