package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// dirLock guarantees single-writer access to a store directory across
// processes for the lifetime of an open handle.
type dirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newDirLock(dir string) *dirLock {
	path := filepath.Join(dir, ".corerag.lock")
	return &dirLock{path: path, flock: flock.New(path)}
}

// tryLock acquires an exclusive, non-blocking lock on the store directory.
func (l *dirLock) tryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire store lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

func (l *dirLock) unlock() error {
	if !l.locked {
		return nil
	}
	err := l.flock.Unlock()
	l.locked = false
	return err
}
