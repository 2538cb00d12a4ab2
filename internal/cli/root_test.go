package cli

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryworks/foreman/internal/errors"
)

// TestFormatVersion verifies version string assembly and defaults.
func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{
			name: "full info",
			info: BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-01"},
			want: "1.2.3 (commit: abc123, built: 2026-01-01)",
		},
		{
			name: "empty info uses defaults",
			info: BuildInfo{},
			want: "dev (commit: none, built: unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatVersion(tt.info))
		})
	}
}

// TestIsValidOutputFormat verifies format validation.
func TestIsValidOutputFormat(t *testing.T) {
	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("xml"))
	assert.False(t, IsValidOutputFormat(""))
}

// TestExitCodeForError maps errors to exit codes.
func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitSuccess},
		{"invalid output format", errors.ErrInvalidOutputFormat, ExitInvalidInput},
		{"invalid argument", errors.Wrap(errors.ErrInvalidArgument, "task id"), ExitInvalidInput},
		{"invalid status", errors.ErrInvalidStatus, ExitInvalidInput},
		{"cobra unknown flag", stderrors.New(`unknown flag: --bogus`), ExitInvalidInput},
		{"cobra unknown command", stderrors.New(`unknown command "frobnicate" for "foreman"`), ExitInvalidInput},
		{"general error", stderrors.New("database exploded"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeForError(tt.err))
		})
	}
}

// TestRootCommandShowsHelp verifies the bare invocation prints help.
func TestRootCommandShowsHelp(t *testing.T) {
	c := newCLITest(t)

	out, err := c.run()
	require.NoError(t, err)
	assert.Contains(t, out, "foreman")
	assert.Contains(t, out, "dispatch")
}

// TestRootCommandRejectsInvalidOutputFormat verifies output format
// validation happens before any subcommand runs.
func TestRootCommandRejectsInvalidOutputFormat(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("status", "--output", "xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidOutputFormat)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

// TestRootCommandRejectsVerboseQuietTogether verifies the flag group.
func TestRootCommandRejectsVerboseQuietTogether(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("status", "--verbose", "--quiet")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}
