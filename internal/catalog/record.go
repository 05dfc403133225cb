// Package catalog queries the beehive metadata catalog for per-day file
// listings. The query protocol itself is treated as opaque: a filtered time
// window in, a table of records out. Each record's value is the URL of one
// uploaded file, with site/sensor/original-path metadata alongside.
package catalog

import (
	"context"
	"path"
	"time"
)

// Metadata keys the curator reads from query records.
const (
	MetaVSN          = "vsn"
	MetaSite         = "site"
	MetaSensor       = "sensor"
	MetaOriginalPath = "original_path"
)

// UnknownSite is substituted when a record carries no site metadata.
// Site grouping is a convenience, not a hard requirement.
const UnknownSite = "UNKNOWN"

// Filter narrows a catalog query to one device and upload stream.
type Filter struct {
	VSN        string `json:"vsn,omitempty"`
	UploadName string `json:"upload_name,omitempty"`
}

// Record is one row of a catalog query result. Ephemeral: it exists only
// for the duration of one window's processing.
type Record struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     string            `json:"value"` // file URL
	Meta      map[string]string `json:"meta"`
}

// URL returns the record's source file URL.
func (r Record) URL() string { return r.Value }

// Filename returns the last path element of the record's URL.
func (r Record) Filename() string { return path.Base(r.Value) }

// VSN returns the uploading device's identifier.
func (r Record) VSN() string { return r.Meta[MetaVSN] }

// Site returns the record's site metadata, or UnknownSite when absent.
func (r Record) Site() string {
	if s := r.Meta[MetaSite]; s != "" {
		return s
	}
	return UnknownSite
}

// Sensor returns the record's sensor metadata.
func (r Record) Sensor() string { return r.Meta[MetaSensor] }

// OriginalPath returns the file's absolute path on the source device,
// empty when the upload plugin did not report one.
func (r Record) OriginalPath() string { return r.Meta[MetaOriginalPath] }

// Querier is the consumed catalog contract. A query failure for one day
// window must never abort a multi-day job; the runner logs and moves on.
type Querier interface {
	Query(ctx context.Context, start, end time.Time, f Filter) ([]Record, error)
}
