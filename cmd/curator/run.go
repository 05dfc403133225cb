package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/crocus-atmos/curator/internal/catalog"
	"github.com/crocus-atmos/curator/internal/curate"
	"github.com/crocus-atmos/curator/internal/download"
	"github.com/spf13/cobra"
)

var (
	runDryRun     bool
	runTestRun    bool
	runJob        string
	runWorkers    int
	runTimeout    time.Duration
	runCatalogURL string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured curation jobs",
		Long: `Run every job in the config (or one job with --job). For each job, the date
range is split into per-day windows; each window is queried against the
catalog and the resulting files are downloaded into the destination tree.

Files already present are skipped, so re-running a job over the same range is
cheap and safe. One day's query failure or one file's transfer failure never
aborts the rest of the run; the job ends partial instead.`,
		Example: `  curator run --config jobs.yaml --root-dir /srv/curated
  curator run --config jobs.yaml --root-dir /srv/curated --dry-run
  curator run --config jobs.yaml --root-dir /srv/curated --job cl61-ingest --test-run
  curator run --config jobs.yaml --root-dir /srv/curated --workers 8 --timeout 2m`,
		RunE: runRun,
	}

	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "plan and report without downloading")
	cmd.Flags().BoolVar(&runTestRun, "test-run", false, "limit each day window to one file")
	cmd.Flags().StringVar(&runJob, "job", "", "run only the named job")
	cmd.Flags().IntVar(&runWorkers, "workers", 4, "concurrent downloads")
	cmd.Flags().DurationVar(&runTimeout, "timeout", download.DefaultTimeout, "per-request timeout")
	cmd.Flags().StringVar(&runCatalogURL, "catalog-url", "", "catalog base URL (default public endpoint)")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}
	if rootDir == "" {
		return fmt.Errorf("--root-dir is required")
	}

	// Missing credentials are the only fatal configuration error.
	username, password, err := globalCfg.ResolveCredentials()
	if err != nil {
		return err
	}

	querier := catalog.NewClient(runCatalogURL, runTimeout, logger)
	client := download.NewClient(download.Credentials{Username: username, Password: password}, runTimeout, logger)
	runner := curate.NewRunner(querier, client, globalStore, logger, curate.Options{
		RootDir: rootDir,
		DryRun:  runDryRun,
		TestRun: runTestRun,
		OnlyJob: runJob,
		Workers: runWorkers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runDryRun {
		fmt.Println("DRY RUN: no files will be downloaded")
	}

	reports, runErr := runner.RunAll(ctx, globalCfg)

	ran := 0
	partial := 0
	for _, rep := range reports {
		fmt.Println(curate.Summarize(rep))
		if rep.State == curate.StateSkipped {
			continue
		}
		ran++
		if rep.State == curate.StatePartial {
			partial++
		}
	}

	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if ran == 0 {
		return fmt.Errorf("no jobs ran (check --job and the config)")
	}
	if partial == ran {
		return fmt.Errorf("all %d jobs ended partial", ran)
	}
	if partial > 0 {
		logger.Warn("some jobs ended partial", "partial", partial, "ran", ran)
	}
	return nil
}
