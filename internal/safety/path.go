// Package safety holds the path-containment and HTTP hardening helpers
// shared by the path resolver and the catalog/download clients. Every
// destination the curator writes must stay inside the archive root; these
// helpers are the single place that invariant is enforced.
package safety

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanRelativePath validates and normalizes a relative path.
// It rejects absolute paths and parent traversal segments.
func CleanRelativePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is empty")
	}

	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." {
		return "", fmt.Errorf("path resolves to current directory")
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute paths are not allowed: %q", p)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("parent traversal is not allowed: %q", p)
	}
	return clean, nil
}

// JoinUnderRoot joins a relative path under root and verifies the result
// stays inside root. Every resolved destination is built through here.
func JoinUnderRoot(root, rel string) (string, error) {
	cleanRel, err := CleanRelativePath(rel)
	if err != nil {
		return "", err
	}
	return EnsureUnderRoot(root, filepath.Join(root, cleanRel))
}

// EnsureUnderRoot verifies candidate resolves under root and returns an
// absolute normalized path.
func EnsureUnderRoot(root, candidate string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	candAbs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve candidate: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, candAbs)
	if err != nil {
		return "", fmt.Errorf("compare paths: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %q", candidate)
	}
	return candAbs, nil
}

// StripMountPrefix removes the device-side mount prefix from an original
// upload path, returning the remainder as a relative path. The path must
// begin with the prefix; the curator fails a record closed rather than
// guessing where an unexpected path belongs.
func StripMountPrefix(originalPath, mountPrefix string) (string, error) {
	if originalPath == "" {
		return "", fmt.Errorf("original path is empty")
	}
	if mountPrefix == "" {
		return "", fmt.Errorf("mount prefix is empty")
	}

	prefix := strings.TrimRight(mountPrefix, "/")
	if originalPath != prefix && !strings.HasPrefix(originalPath, prefix+"/") {
		return "", fmt.Errorf("original path %q is outside mount %q", originalPath, mountPrefix)
	}

	rel := strings.TrimLeft(strings.TrimPrefix(originalPath, prefix), "/")
	if rel == "" {
		return "", fmt.Errorf("original path %q has no remainder under mount %q", originalPath, mountPrefix)
	}
	return rel, nil
}
