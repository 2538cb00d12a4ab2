package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/flock"
)

// TestDispatchEmptyQueue verifies a pass against an empty store succeeds
// and reports the queue state.
func TestDispatchEmptyQueue(t *testing.T) {
	c := newCLITest(t)

	out, err := c.run("dispatch")
	require.NoError(t, err)
	assert.Contains(t, out, "launched: 0 builders, 0 validators")
	assert.Contains(t, out, "queue: 0 todo")
}

// TestDispatchFailsWhileLocked verifies the single-writer guard.
func TestDispatchFailsWhileLocked(t *testing.T) {
	c := newCLITest(t)

	// Run once so the database and its parent directory exist.
	_, err := c.run("dispatch")
	require.NoError(t, err)

	lock, err := flock.Acquire(c.dbPath + constants.LockFileSuffix)
	require.NoError(t, err)
	defer func() { require.NoError(t, lock.Release()) }()

	_, err = c.run("dispatch")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDispatcherLocked)
}

// TestDispatchRejectsExtraArgs verifies argument validation.
func TestDispatchRejectsExtraArgs(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("dispatch", "now")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}
