package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarryworks/foreman/internal/clock"
	"github.com/quarryworks/foreman/internal/store"
)

// cliTest runs foreman commands against an isolated home directory and
// database.
type cliTest struct {
	t      *testing.T
	home   string
	dbPath string
}

// newCLITest isolates HOME and FOREMAN_HOME in a temp directory so commands
// never touch the real user environment.
func newCLITest(t *testing.T) *cliTest {
	t.Helper()

	home := t.TempDir()
	foremanHome := filepath.Join(home, ".foreman")
	t.Setenv("HOME", home)
	t.Setenv("FOREMAN_HOME", foremanHome)
	// NO_COLOR keeps logger output deterministic regardless of the terminal.
	t.Setenv("NO_COLOR", "1")

	return &cliTest{
		t:      t,
		home:   foremanHome,
		dbPath: filepath.Join(foremanHome, "test.db"),
	}
}

// run executes the root command with the given args plus the test database
// flag, returning combined stdout/stderr.
func (c *cliTest) run(args ...string) (string, error) {
	c.t.Helper()

	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, BuildInfo{})

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append(args, "--db", c.dbPath))

	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// openStore opens the test database directly for seeding and assertions.
// The caller must Close it before running commands that write.
func (c *cliTest) openStore() *store.SQLiteStore {
	c.t.Helper()

	require.NoError(c.t, os.MkdirAll(filepath.Dir(c.dbPath), 0o750))
	st, err := store.NewSQLiteStore(c.dbPath, clock.RealClock{})
	require.NoError(c.t, err)
	return st
}
