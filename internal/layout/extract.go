// Package layout derives calendar dates from instrument filenames and
// computes destination directories for curated files. Filenames come from
// heterogeneous device firmware, so which regex and date format apply is a
// per-job configuration concern; extraction failures are reported, never
// raised.
package layout

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// waggleTimestampRe matches the sensor network's upload naming: a 19-digit
// nanosecond epoch, a dash, then the device's own filename.
var waggleTimestampRe = regexp.MustCompile(`^(\d{19})-(.+)$`)

// DateExtractor pulls a calendar date out of a filename using a configured
// regex and Go time layout. The regex's first capture group is parsed when
// present, otherwise the whole match.
type DateExtractor struct {
	re     *regexp.Regexp
	layout string
}

// NewDateExtractor compiles a job's date regex. The layout is a Go
// reference-time layout such as "20060102".
func NewDateExtractor(pattern, layout string) (*DateExtractor, error) {
	if pattern == "" {
		return nil, fmt.Errorf("date regex is empty")
	}
	if layout == "" {
		return nil, fmt.Errorf("date format is empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling date regex: %w", err)
	}
	return &DateExtractor{re: re, layout: layout}, nil
}

// Extract returns the date embedded in filename, or false when the regex
// does not match or the matched text does not parse with the layout.
func (e *DateExtractor) Extract(filename string) (time.Time, bool) {
	m := e.re.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}

	text := m[0]
	if len(m) > 1 {
		text = m[1]
	}

	t, err := time.Parse(e.layout, text)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ExtractWaggleTimestamp parses the leading nanosecond-epoch prefix of an
// upload filename. Returns false when the filename is not waggle-named.
func ExtractWaggleTimestamp(filename string) (time.Time, bool) {
	m := waggleTimestampRe.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}
	ns, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, ns).UTC(), true
}

// ApplyRename rewrites a waggle-named file's nanosecond prefix using the
// given Go time layout, e.g. layout "20060102-150405" turns
// "1719792000000000000-sensorA.nc" into "20240701-000000_sensorA.nc".
// An empty layout or non-waggle filename is returned unchanged.
func ApplyRename(filename, renameLayout string) string {
	if renameLayout == "" {
		return filename
	}
	m := waggleTimestampRe.FindStringSubmatch(filename)
	if m == nil {
		return filename
	}
	ts, ok := ExtractWaggleTimestamp(filename)
	if !ok {
		return filename
	}
	return ts.Format(renameLayout) + "_" + m[2]
}
