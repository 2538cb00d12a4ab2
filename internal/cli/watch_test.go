package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWatchStopsOnCanceledContext verifies the loop treats cancellation as a
// normal shutdown rather than an error.
func TestWatchStopsOnCanceledContext(t *testing.T) {
	c := newCLITest(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, BuildInfo{})

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"watch", "--interval", "1h", "--db", c.dbPath})

	require.NoError(t, cmd.ExecuteContext(ctx))
}

// TestWatchRejectsExtraArgs verifies argument validation.
func TestWatchRejectsExtraArgs(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("watch", "forever")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}
