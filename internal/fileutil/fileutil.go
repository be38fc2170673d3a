package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// TempSuffix is appended to a target path while an atomic write is in flight.
// Crash debris carrying this suffix is swept by RemoveOrphanTemps.
const TempSuffix = ".tmp"

// WriteFileAtomic writes data to path via a temporary file in the same
// directory followed by rename, so a partial file is never visible under the
// final name. Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmp := path + TempSuffix
	if err := os.WriteFile(tmp, data, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// RemoveOrphanTemps deletes *.tmp files left behind by an interrupted run.
// Returns the number of files removed; unreadable entries are skipped.
func RemoveOrphanTemps(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), TempSuffix) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep temp files: %w", err)
	}
	return removed, nil
}

// FreeSpace reports the bytes available to unprivileged writes on the
// filesystem containing path. Falls back to the working directory when path
// does not exist yet.
func FreeSpace(path string) (uint64, error) {
	probe := path
	if _, err := os.Stat(probe); err != nil {
		if probe, err = os.Getwd(); err != nil {
			return 0, err
		}
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(probe, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", probe, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
