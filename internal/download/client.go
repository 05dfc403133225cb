// Package download performs idempotent, authenticated file fetches for the
// curator. A fetch is skipped when its destination already exists, so
// re-running a job over the same date range never re-downloads or corrupts
// files already on disk.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/crocus-atmos/curator/internal/safety"
)

// DefaultTimeout bounds one file fetch end to end.
const DefaultTimeout = 30 * time.Second

// Credentials carries the catalog's basic-auth pair.
type Credentials struct {
	Username string
	Password string
}

// FetchOptions describes one record's fetch.
type FetchOptions struct {
	URL          string
	DestDir      string
	Filename     string
	SkipIfExists bool
	DryRun       bool
}

// FetchResult describes a completed (or dry-run) fetch.
type FetchResult struct {
	Path   string // final destination path
	Size   int64  // bytes written, 0 for skips and dry runs
	SHA256 string // hex digest of the written file, empty for skips and dry runs
}

// HTTPError reports a non-2xx response from the file server.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d fetching %s: %s", e.StatusCode, e.URL, e.Status)
}

// Client fetches files over authenticated HTTP and writes them atomically.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a download client. A non-positive timeout selects
// DefaultTimeout.
func NewClient(creds Credentials, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: safety.NewHTTPClient(timeout),
		creds:      creds,
		logger:     logger,
		userAgent:  "curator/1.0",
	}
}

// Fetch processes one record: ensure the destination directory, honor
// skip-if-exists and dry-run, otherwise download. Transfer failures are
// returned alongside OutcomeFailedHTTP so the caller can continue the batch.
func (c *Client) Fetch(ctx context.Context, opts FetchOptions) (Outcome, *FetchResult, error) {
	if opts.Filename == "" {
		return OutcomeFailedHTTP, nil, fmt.Errorf("fetch has no filename")
	}
	destPath := filepath.Join(opts.DestDir, opts.Filename)

	if err := os.MkdirAll(opts.DestDir, 0755); err != nil {
		return OutcomeFailedHTTP, nil, fmt.Errorf("creating directory %s: %w", opts.DestDir, err)
	}

	if opts.SkipIfExists {
		if _, err := os.Stat(destPath); err == nil {
			c.logger.Info("file already exists, skipping", "path", destPath)
			return OutcomeSkippedExists, &FetchResult{Path: destPath}, nil
		}
	}

	if opts.DryRun {
		c.logger.Info("dry run: would download", "url", opts.URL, "path", destPath)
		return OutcomeDryRun, &FetchResult{Path: destPath}, nil
	}

	result, err := c.download(ctx, opts.URL, destPath)
	if err != nil {
		return OutcomeFailedHTTP, nil, err
	}

	c.logger.Info("downloaded", "path", destPath, "size", result.Size)
	return OutcomeDownloaded, result, nil
}

// download streams the URL's body to a temporary neighbor of destPath and
// renames it into place, so a partially-written file is never mistaken for
// a complete one.
func (c *Client) download(ctx context.Context, url, destPath string) (*FetchResult, error) {
	if _, err := safety.ValidateHTTPURL(url); err != nil {
		return nil, fmt.Errorf("rejecting source URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.creds.Username, c.creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url}
	}

	tmpPath := destPath + ".partial"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("renaming into place: %w", err)
	}

	return &FetchResult{
		Path:   destPath,
		Size:   written,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
