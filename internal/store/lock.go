package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// IndexLock provides cross-process locking for an index data directory.
// The metadata database, keyword index, and vector snapshot are not safe
// for concurrent writers, so every command that opens the index for
// writing must hold this lock first.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates a lock for the given data directory. The lock file
// lives at <dir>/.reqlens.lock.
func NewIndexLock(dir string) *IndexLock {
	lockPath := filepath.Join(dir, ".reqlens.lock")
	return &IndexLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking. Returns false when
// another process holds it.
func (l *IndexLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire index lock: %w", err)
	}

	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call when the lock was never acquired.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release index lock: %w", err)
	}
	l.locked = false
	return nil
}

// Locked reports whether this process currently holds the lock.
func (l *IndexLock) Locked() bool {
	return l.locked
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.path
}
