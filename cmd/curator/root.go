package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crocus-atmos/curator/internal/config"
	"github.com/crocus-atmos/curator/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath   string
	rootDir   string
	logLevel  string
	logFormat string
	debug     bool
	globalCfg *config.Config
	logger    *slog.Logger

	// Global components
	globalStore *store.Store
	logFile     *os.File
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curator",
		Short: "File curation for the urban sensor network",
		Long: `curator pulls uploaded instrument files from the beehive catalog into a
curated directory tree. Jobs are declared in a YAML config; each job names an
upload stream and a device, a date range, and a destination layout. Runs are
idempotent: files already on disk are never re-downloaded or overwritten.`,
		Example: `  curator run --config jobs.yaml --root-dir /srv/curated
  curator run --config jobs.yaml --root-dir /srv/curated --dry-run
  curator run --config jobs.yaml --root-dir /srv/curated --job cl61-ingest --test-run
  curator validate --config jobs.yaml
  curator status --root-dir /srv/curated --limit 10`,
		Version: "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}

			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			if cfgPath == "" {
				return fmt.Errorf("--config is required")
			}
			var err error
			globalCfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.Debug("config loaded", "path", cfgPath, "jobs", len(globalCfg.Jobs))

			// The run history store is a convenience; a broken database must
			// never block downloads.
			if needsStore(cmd.Name()) {
				openStore()
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
			if logFile != nil {
				logFile.Close()
			}
		},
	}

	// Add persistent flags
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to the YAML job config")
	cmd.PersistentFlags().StringVar(&rootDir, "root-dir", "", "destination root for curated files")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "shorthand for --log-level debug")

	// Add subcommands
	cmd.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newStatusCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags. When a root
// directory is known, output is teed into a per-run file under <root>/logs
// so every curation run leaves an audit trail next to its data.
func setupLogging() error {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if rootDir != "" {
		logDir := filepath.Join(rootDir, "logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		name := fmt.Sprintf("log_%s.log", time.Now().UTC().Format("20060102T150405Z"))
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(os.Stderr, f)
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
	return nil
}

// openStore opens the run history database under the root directory.
func openStore() {
	if rootDir == "" {
		return
	}
	st, err := store.New(filepath.Join(rootDir, "curator.db"), logger)
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
		return
	}
	globalStore = st
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
		"status":  true,
	}
	return skipConfigCmds[cmdName]
}

// needsStore checks if a command records run history
func needsStore(cmdName string) bool {
	return cmdName == "run"
}
