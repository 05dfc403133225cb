package layout

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/crocus-atmos/curator/internal/safety"
)

// ErrOutsideMount is returned when a mirroring record's original path does
// not honor the job's mount prefix. This is a configuration/data mismatch
// that could otherwise write outside the intended tree, so the record fails
// closed.
var ErrOutsideMount = errors.New("original path outside mount prefix")

// GroupedDest computes the destination directory for the grouped-by-date
// policy: root/<upload>/<vsn>-<site>/[subfolder][/YYYY/MM/DD]. The date
// subtree is appended only when byDate is set; the date comes from the
// record's filename, not the query window, since files embedded near
// midnight can cross the window's day.
func GroupedDest(root, uploadName, vsn, site, subfolder string, date time.Time, byDate bool) (string, error) {
	rel := filepath.Join(uploadName, fmt.Sprintf("%s-%s", vsn, site))
	if subfolder != "" {
		sub, err := safety.CleanRelativePath(subfolder)
		if err != nil {
			return "", fmt.Errorf("invalid subfolder: %w", err)
		}
		rel = filepath.Join(rel, sub)
	}
	if byDate {
		rel = filepath.Join(rel, date.UTC().Format("2006/01/02"))
	}
	return safety.JoinUnderRoot(root, rel)
}

// MirrorDest computes the destination directory for the mirror policy: the
// record's original device path is reproduced under root with the mount
// prefix stripped. A path outside the mount yields ErrOutsideMount.
func MirrorDest(root, originalPath, mountDir string) (string, error) {
	if originalPath == "" {
		return "", fmt.Errorf("%w: record has no original path", ErrOutsideMount)
	}

	rel, err := safety.StripMountPrefix(originalPath, mountDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutsideMount, err)
	}

	full, err := safety.JoinUnderRoot(root, rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutsideMount, err)
	}
	return filepath.Dir(full), nil
}
