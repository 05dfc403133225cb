package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crocus-atmos/curator/internal/store"
	"github.com/spf13/cobra"
)

var (
	statusJob   string
	statusLimit int
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display recent curation runs",
		Long: `Display recent curation runs recorded in the root directory's run history
database. Shows per-run window and download counts, transferred bytes, and
the run's final state.`,
		Example: `  curator status --root-dir /srv/curated
  curator status --root-dir /srv/curated --job cl61-ingest --limit 5`,
		RunE: statusRun,
	}

	cmd.Flags().StringVar(&statusJob, "job", "", "show only the named job's runs")
	cmd.Flags().IntVar(&statusLimit, "limit", 20, "maximum runs to show")

	return cmd
}

func statusRun(cmd *cobra.Command, args []string) error {
	if rootDir == "" {
		return fmt.Errorf("--root-dir is required")
	}

	st, err := store.New(filepath.Join(rootDir, "curator.db"), logger)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(statusJob, statusLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Println("Curation Runs")
	fmt.Println("=============")
	fmt.Println("")
	fmt.Printf("%-20s %-16s %8s %10s %8s %8s %10s %-10s\n",
		"Job", "Started", "Windows", "Downloaded", "Skipped", "Failed", "Size", "Status")
	fmt.Println(strings.Repeat("-", 98))

	for _, run := range runs {
		windows := fmt.Sprintf("%d/%d", run.WindowsTotal-run.WindowsFailed, run.WindowsTotal)
		fmt.Printf("%-20s %-16s %8s %10d %8d %8d %10s %-10s\n",
			run.Job,
			run.StartTime.Format("2006-01-02 15:04"),
			windows,
			run.Downloaded,
			run.Skipped,
			run.Failed,
			formatBytes(run.Bytes),
			run.Status,
		)
	}

	fmt.Println("")

	return nil
}

// formatBytes formats a byte count into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
