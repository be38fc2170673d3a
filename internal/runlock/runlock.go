// Package runlock enforces single-writer discipline over a stage's state
// file with an advisory flock lock, so concurrent invocations fail fast
// instead of corrupting shared progress.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a held advisory lock for one stage.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes the advisory lock for a stage, creating the lock file under
// dir. It fails immediately when another process holds it.
func Acquire(dir, stage string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, stage+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", stage, err)
	}
	if !ok {
		return nil, fmt.Errorf("another docpipe %s run is already in progress (lock: %s)", stage, path)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the advisory lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
