// Package flock guards the task store against concurrent dispatchers. Two
// dispatch loops against one database would double-launch workers, so the
// dispatcher takes an exclusive non-blocking lock on a file next to the
// database before its first pass.
package flock

import (
	"os"

	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

// Lock is a held exclusive file lock.
type Lock struct {
	file *os.File
}

// Acquire takes an exclusive non-blocking lock on path, creating the file if
// needed. Returns ErrDispatcherLocked when another process holds the lock.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //nolint:gosec // lock file path derives from the db path
	if err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to open lock file %s", path)
	}
	if err := Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		return nil, foremanerrors.Wrapf(foremanerrors.ErrDispatcherLocked, "lock file %s", path)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := Unlock(l.file.Fd())
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	l.file = nil
	return err
}
