package safety

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanRelativePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"simple", "cl61_files/W09A-ATMOS", false},
		{"nested", "raw/2024/07/01/foo.nc", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"absolute", "/etc/passwd", true},
		{"parent", "..", true},
		{"traversal", "../outside", true},
		{"embedded traversal collapses", "a/../b", false},
		{"traversal past root", "a/../../b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CleanRelativePath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("CleanRelativePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestJoinUnderRoot(t *testing.T) {
	root := t.TempDir()

	got, err := JoinUnderRoot(root, "cl61_files/2024/07/01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, root) {
		t.Errorf("joined path %q not under root %q", got, root)
	}

	if _, err := JoinUnderRoot(root, "../escape"); err == nil {
		t.Error("expected error for traversal, got nil")
	}
}

func TestEnsureUnderRoot(t *testing.T) {
	root := t.TempDir()

	if _, err := EnsureUnderRoot(root, filepath.Join(root, "sub", "file.nc")); err != nil {
		t.Errorf("unexpected error for contained path: %v", err)
	}
	if _, err := EnsureUnderRoot(root, filepath.Join(root, "..", "other")); err == nil {
		t.Error("expected error for escaping path, got nil")
	}
}

func TestStripMountPrefix(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		mount   string
		want    string
		wantErr bool
	}{
		{"typical", "/data/raw/2024/07/01/foo.nc", "/data", "raw/2024/07/01/foo.nc", false},
		{"trailing slash on mount", "/data/raw/foo.nc", "/data/", "raw/foo.nc", false},
		{"outside mount", "/srv/raw/foo.nc", "/data", "", true},
		{"prefix but not segment", "/database/foo.nc", "/data", "", true},
		{"exact mount only", "/data", "/data", "", true},
		{"empty path", "", "/data", "", true},
		{"empty mount", "/data/foo.nc", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripMountPrefix(tt.path, tt.mount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StripMountPrefix(%q, %q) error = %v, wantErr %v", tt.path, tt.mount, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("StripMountPrefix(%q, %q) = %q, want %q", tt.path, tt.mount, got, tt.want)
			}
		})
	}
}
