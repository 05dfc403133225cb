package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crocus-atmos/curator/internal/safety"
)

const (
	// DefaultBaseURL is the public beehive data API.
	DefaultBaseURL = "https://data.sagecontinuum.org"

	queryPath = "/api/v1/query"

	// Day-granular queries return a few hundred rows; 64 MiB is far above
	// any legitimate response.
	maxResponseBytes int64 = 64 << 20
)

// Client queries the catalog's HTTP API. Responses arrive as
// newline-delimited JSON, one record per line.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a catalog client. An empty baseURL selects the public
// catalog endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: safety.NewHTTPClient(timeout),
		logger:     logger,
	}
}

type queryRequest struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Filter Filter `json:"filter"`
}

// wireRecord matches the catalog's NDJSON row shape. Meta values can be any
// scalar; they are normalized to strings.
type wireRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Name      string         `json:"name"`
	Value     any            `json:"value"`
	Meta      map[string]any `json:"meta"`
}

// Query runs one windowed catalog query and returns its records. Rows whose
// value is not a string (scalar measurements share the same API) are
// dropped; upload records always carry a URL string.
func (c *Client) Query(ctx context.Context, start, end time.Time, f Filter) ([]Record, error) {
	body, err := json.Marshal(queryRequest{
		Start:  start.UTC().Format(time.RFC3339),
		End:    end.UTC().Format(time.RFC3339),
		Filter: f,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := safety.ReadAllWithLimit(resp.Body, 4096)
		return nil, fmt.Errorf("catalog query returned %s: %s", resp.Status, strings.TrimSpace(string(errBody)))
	}

	data, err := safety.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("reading query response: %w", err)
	}

	return c.parseNDJSON(data)
}

func (c *Client) parseNDJSON(data []byte) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var w wireRecord
		if err := json.Unmarshal(raw, &w); err != nil {
			// One malformed row should not discard the rest of the day.
			c.logger.Warn("skipping malformed catalog row", "line", line, "error", err)
			continue
		}

		url, ok := w.Value.(string)
		if !ok {
			c.logger.Debug("skipping non-file catalog row", "line", line, "name", w.Name)
			continue
		}

		records = append(records, Record{
			Timestamp: w.Timestamp,
			Name:      w.Name,
			Value:     url,
			Meta:      stringifyMeta(w.Meta),
		})
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("scanning query response: %w", err)
	}

	return records, nil
}

func stringifyMeta(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			// absent
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
