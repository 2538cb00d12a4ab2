//go:build unix

package flock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreman.db.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	// Released locks can be re-acquired.
	lock, err = Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreman.db.lock")

	held, err := Acquire(path)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	_, err = Acquire(path)
	require.ErrorIs(t, err, foremanerrors.ErrDispatcherLocked)
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreman.db.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
	assert.NoError(t, lock.Release())

	var nilLock *Lock
	assert.NoError(t, nilLock.Release())
}