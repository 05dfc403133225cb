package layout

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGroupedDest(t *testing.T) {
	root := t.TempDir()
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		site      string
		subfolder string
		byDate    bool
		wantRel   string
	}{
		{"by date", "ATMOS", "", true, "cl61_files/W09A-ATMOS/2024/07/01"},
		{"no date grouping", "ATMOS", "", false, "cl61_files/W09A-ATMOS"},
		{"with subfolder", "ATMOS", "raw/live", true, "cl61_files/W09A-ATMOS/raw/live/2024/07/01"},
		{"unknown site placeholder", "UNKNOWN", "", true, "cl61_files/W09A-UNKNOWN/2024/07/01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GroupedDest(root, "cl61_files", "W09A", tt.site, tt.subfolder, date, tt.byDate)
			if err != nil {
				t.Fatalf("GroupedDest: %v", err)
			}
			want := filepath.Join(root, filepath.FromSlash(tt.wantRel))
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

// TestGroupedDestContainment: a hostile subfolder cannot escape the root.
func TestGroupedDestContainment(t *testing.T) {
	root := t.TempDir()

	for _, sub := range []string{"../../outside", "/abs/path"} {
		if _, err := GroupedDest(root, "u", "v", "s", sub, time.Now(), true); err == nil {
			t.Errorf("subfolder %q accepted, want containment error", sub)
		}
	}
}

func TestMirrorDest(t *testing.T) {
	root := t.TempDir()

	// /data/raw/2024/07/01/foo.nc under mount /data mirrors to
	// root/raw/2024/07/01.
	got, err := MirrorDest(root, "/data/raw/2024/07/01/foo.nc", "/data")
	if err != nil {
		t.Fatalf("MirrorDest: %v", err)
	}
	want := filepath.Join(root, "raw", "2024", "07", "01")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMirrorDestFailsClosed(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"outside mount", "/srv/raw/foo.nc"},
		{"missing original path", ""},
		{"prefix not a segment", "/database/foo.nc"},
		{"traversal inside mount", "/data/../etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MirrorDest(root, tt.path, "/data")
			if err == nil {
				t.Fatalf("MirrorDest(%q) = %q, want error", tt.path, got)
			}
			if !errors.Is(err, ErrOutsideMount) {
				t.Errorf("error %v is not ErrOutsideMount", err)
			}
		})
	}
}

// TestDestAlwaysUnderRoot is the path-containment property across both
// policies.
func TestDestAlwaysUnderRoot(t *testing.T) {
	root := t.TempDir()

	if dir, err := MirrorDest(root, "/data/a/../../escape.nc", "/data"); err == nil {
		if !strings.HasPrefix(dir, root) {
			t.Errorf("mirror resolved outside root: %q", dir)
		}
	}

	dir, err := GroupedDest(root, "upload", "W09A", "ATMOS", "", time.Now(), true)
	if err != nil {
		t.Fatalf("GroupedDest: %v", err)
	}
	if !strings.HasPrefix(dir, root) {
		t.Errorf("grouped resolved outside root: %q", dir)
	}
}
