// Package curate orchestrates file-curation jobs: one day window at a time,
// query the catalog, resolve each record's destination, and hand the batch
// to the download pool. Failures are contained at the smallest scope that
// makes sense — a bad record skips the record, a failed query skips the day,
// an invalid job skips the job — so a multi-day batch always runs to the end.
package curate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/crocus-atmos/curator/internal/catalog"
	"github.com/crocus-atmos/curator/internal/config"
	"github.com/crocus-atmos/curator/internal/download"
	"github.com/crocus-atmos/curator/internal/layout"
	"github.com/crocus-atmos/curator/internal/store"
	"github.com/crocus-atmos/curator/internal/timewin"
)

// State is a job's lifecycle position.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StatePartial   State = "partial" // some windows or records failed
	StateSkipped   State = "skipped" // name filter mismatch or invalid config
)

// Options controls one runner invocation.
type Options struct {
	RootDir string
	DryRun  bool
	TestRun bool   // cap each day window at one record
	OnlyJob string // run only the named job
	Workers int
}

// JobReport summarizes one job's execution.
type JobReport struct {
	Job           string
	State         State
	WindowsTotal  int
	WindowsFailed int
	Outcomes      map[download.Outcome]int
	Bytes         int64
	Saved         []string // paths that ended downloaded or dry-run
}

// SkippedTotal sums every skip class.
func (r *JobReport) SkippedTotal() int {
	return r.Outcomes[download.OutcomeSkippedExists] +
		r.Outcomes[download.OutcomeSkippedNoDate] +
		r.Outcomes[download.OutcomeSkippedPathError]
}

// Runner executes curation jobs against a catalog and a download client.
// The store is optional; when present, runs and downloaded files are
// recorded for the status command.
type Runner struct {
	querier catalog.Querier
	client  *download.Client
	store   *store.Store
	logger  *slog.Logger
	opts    Options
}

// NewRunner wires a runner. st may be nil.
func NewRunner(q catalog.Querier, client *download.Client, st *store.Store, logger *slog.Logger, opts Options) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{querier: q, client: client, store: st, logger: logger, opts: opts}
}

// RunAll executes every job in the config, honoring the OnlyJob filter.
// Per-job failures never abort the remaining jobs; the error is non-nil only
// when the context was cancelled.
func (r *Runner) RunAll(ctx context.Context, cfg *config.Config) ([]JobReport, error) {
	reports := make([]JobReport, 0, len(cfg.Jobs))

	for i := range cfg.Jobs {
		job := cfg.Jobs[i]

		if r.opts.OnlyJob != "" && job.Name != r.opts.OnlyJob {
			reports = append(reports, JobReport{Job: job.Name, State: StateSkipped})
			continue
		}

		if err := job.Validate(); err != nil {
			var mk *config.MissingKeyError
			if errors.As(err, &mk) {
				r.logger.Warn("skipping job with incomplete config", "job", mk.Job, "missing_key", mk.Key)
			} else {
				r.logger.Warn("skipping invalid job", "job", job.Name, "error", err)
			}
			reports = append(reports, JobReport{Job: job.Name, State: StateSkipped})
			continue
		}

		reports = append(reports, r.runJob(ctx, job))

		select {
		case <-ctx.Done():
			r.logger.Info("curation cancelled between jobs")
			return reports, ctx.Err()
		default:
		}
	}

	return reports, nil
}

func (r *Runner) runJob(ctx context.Context, job config.JobSpec) JobReport {
	report := JobReport{
		Job:      job.Name,
		State:    StateRunning,
		Outcomes: make(map[download.Outcome]int),
	}

	r.logger.Info("job started",
		"job", job.Name, "vsn", job.VSN, "upload", job.UploadName, "dry_run", r.opts.DryRun)

	// Start and end were validated; errors here cannot happen.
	start, _ := job.Start()
	end, _ := job.End()

	var extractor *layout.DateExtractor
	if job.GroupedByDate() && !job.UsesWaggleTimestamp() {
		ex, err := layout.NewDateExtractor(job.DateRegex, job.DateFormat)
		if err != nil {
			// Validate compiled the regex already; only a bad format slips
			// through, and that surfaces per-file as skipped-no-date.
			r.logger.Warn("date extractor unavailable", "job", job.Name, "error", err)
		}
		extractor = ex
	}

	storeRun := r.recordRunStart(job.Name)

	windows := timewin.Windows(start, end)
	report.WindowsTotal = len(windows)
	pool := download.NewPool(r.client, r.opts.Workers, r.logger)

	for _, win := range windows {
		select {
		case <-ctx.Done():
			r.logger.Info("job cancelled", "job", job.Name, "window", win.Day().Format("2006-01-02"))
			report.WindowsFailed++
			r.finishJob(&report, storeRun)
			return report
		default:
		}

		records, err := r.querier.Query(ctx, win.Start, win.End, catalog.Filter{
			VSN:        job.VSN,
			UploadName: job.UploadName,
		})
		if err != nil {
			// One day's query failure never aborts the multi-day job.
			r.logger.Error("query failed, skipping window",
				"job", job.Name, "window", win.Day().Format("2006-01-02"), "error", err)
			report.WindowsFailed++
			continue
		}
		if len(records) == 0 {
			r.logger.Info("no data in window",
				"job", job.Name, "window", win.Day().Format("2006-01-02"))
			continue
		}

		batch := r.resolveWindow(job, extractor, records, &report)
		if r.opts.TestRun && len(batch) > 1 {
			r.logger.Debug("test run: limiting window to one file",
				"job", job.Name, "url", batch[0].Options.URL)
			batch = batch[:1]
		}

		for _, res := range pool.Execute(ctx, batch) {
			report.Outcomes[res.Outcome]++
			if res.Outcome.Saved() {
				report.Saved = append(report.Saved, res.Fetch.Path)
			}
			if res.Outcome == download.OutcomeDownloaded {
				report.Bytes += res.Fetch.Size
				r.recordFile(job.Name, storeRun, res)
			}
		}
	}

	r.finishJob(&report, storeRun)
	return report
}

// resolveWindow turns one window's records into a deduplicated fetch batch.
// Records that fail extraction or path resolution are counted and skipped
// here, before any network work.
func (r *Runner) resolveWindow(job config.JobSpec, extractor *layout.DateExtractor, records []catalog.Record, report *JobReport) []download.Job {
	var batch []download.Job
	seen := make(map[string]bool)

	for _, site := range sitesOf(records) {
		for _, rec := range records {
			if rec.Site() != site {
				continue
			}

			filename := rec.Filename()
			if !job.AcceptsFile(filename) {
				continue
			}
			finalName := layout.ApplyRename(filename, job.RenameFormat)

			destDir, outcome := r.resolveDest(job, extractor, rec, filename)
			if outcome != "" {
				report.Outcomes[outcome]++
				continue
			}

			dest := filepath.Join(destDir, finalName)
			if seen[dest] {
				continue
			}
			seen[dest] = true

			batch = append(batch, download.Job{Options: download.FetchOptions{
				URL:          rec.URL(),
				DestDir:      destDir,
				Filename:     finalName,
				SkipIfExists: true,
				DryRun:       r.opts.DryRun,
			}})
		}
	}
	return batch
}

// resolveDest computes a record's destination directory, or the skip outcome
// explaining why it has none.
func (r *Runner) resolveDest(job config.JobSpec, extractor *layout.DateExtractor, rec catalog.Record, filename string) (string, download.Outcome) {
	if job.KeepOriginalPath {
		dir, err := layout.MirrorDest(r.opts.RootDir, rec.OriginalPath(), job.Mount())
		if err != nil {
			r.logger.Error("path resolution failed",
				"job", job.Name, "file", filename, "original_path", rec.OriginalPath(), "error", err)
			return "", download.OutcomeSkippedPathError
		}
		return dir, ""
	}

	var fileDate time.Time
	if job.GroupedByDate() {
		var ok bool
		if job.UsesWaggleTimestamp() {
			fileDate, ok = layout.ExtractWaggleTimestamp(filename)
		} else if extractor != nil {
			fileDate, ok = extractor.Extract(filename)
		}
		if !ok {
			r.logger.Warn("no date found in filename, skipping file",
				"job", job.Name, "file", filename)
			return "", download.OutcomeSkippedNoDate
		}
	}

	dir, err := layout.GroupedDest(
		r.opts.RootDir, job.UploadName, job.VSN, rec.Site(), job.Subfolder,
		fileDate, job.GroupedByDate(),
	)
	if err != nil {
		r.logger.Error("path resolution failed",
			"job", job.Name, "file", filename, "error", err)
		return "", download.OutcomeSkippedPathError
	}
	return dir, ""
}

func (r *Runner) finishJob(report *JobReport, storeRun *store.CurateRun) {
	if report.WindowsFailed > 0 || report.Outcomes[download.OutcomeFailedHTTP] > 0 {
		report.State = StatePartial
	} else {
		report.State = StateCompleted
	}

	r.logger.Info("job finished",
		"job", report.Job,
		"state", string(report.State),
		"windows", report.WindowsTotal,
		"windows_failed", report.WindowsFailed,
		"downloaded", report.Outcomes[download.OutcomeDownloaded],
		"dry_run", report.Outcomes[download.OutcomeDryRun],
		"skipped", report.SkippedTotal(),
		"failed", report.Outcomes[download.OutcomeFailedHTTP],
		"bytes", report.Bytes,
	)

	if storeRun != nil {
		storeRun.EndTime = time.Now().UTC()
		storeRun.WindowsTotal = report.WindowsTotal
		storeRun.WindowsFailed = report.WindowsFailed
		storeRun.Downloaded = report.Outcomes[download.OutcomeDownloaded]
		storeRun.Skipped = report.SkippedTotal()
		storeRun.Failed = report.Outcomes[download.OutcomeFailedHTTP]
		storeRun.Bytes = report.Bytes
		storeRun.Status = string(report.State)
		if err := r.store.UpdateRun(storeRun); err != nil {
			r.logger.Warn("failed to update run record", "job", report.Job, "error", err)
		}
	}
}

func (r *Runner) recordRunStart(job string) *store.CurateRun {
	if r.store == nil {
		return nil
	}
	run := &store.CurateRun{
		Job:       job,
		StartTime: time.Now().UTC(),
		Status:    string(StateRunning),
	}
	if err := r.store.CreateRun(run); err != nil {
		r.logger.Warn("failed to create run record", "job", job, "error", err)
		return nil
	}
	return run
}

func (r *Runner) recordFile(job string, storeRun *store.CurateRun, res download.Result) {
	if r.store == nil {
		return
	}
	var runID int64
	if storeRun != nil {
		runID = storeRun.ID
	}
	rec := &store.FileRecord{
		Job:          job,
		Path:         res.Fetch.Path,
		URL:          res.Job.Options.URL,
		Size:         res.Fetch.Size,
		SHA256:       res.Fetch.SHA256,
		DownloadedAt: time.Now().UTC(),
		RunID:        runID,
	}
	if err := r.store.UpsertFileRecord(rec); err != nil {
		r.logger.Warn("failed to record file", "job", job, "path", res.Fetch.Path, "error", err)
	}
}

// sitesOf returns the distinct sites present in a record set, sorted so
// batches build deterministically.
func sitesOf(records []catalog.Record) []string {
	set := make(map[string]bool)
	for _, rec := range records {
		set[rec.Site()] = true
	}
	sites := make([]string, 0, len(set))
	for s := range set {
		sites = append(sites, s)
	}
	sort.Strings(sites)
	return sites
}

// Summarize renders an operator-facing one-line summary for a report.
func Summarize(r JobReport) string {
	return fmt.Sprintf("%s: %s (downloaded %d, dry-run %d, skipped %d, failed %d, windows %d/%d ok)",
		r.Job, r.State,
		r.Outcomes[download.OutcomeDownloaded],
		r.Outcomes[download.OutcomeDryRun],
		r.SkippedTotal(),
		r.Outcomes[download.OutcomeFailedHTTP],
		r.WindowsTotal-r.WindowsFailed, r.WindowsTotal,
	)
}
