package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryworks/foreman/internal/domain"
	"github.com/quarryworks/foreman/internal/errors"
)

// TestTasksAddAndList verifies the full add/list round trip.
func TestTasksAddAndList(t *testing.T) {
	c := newCLITest(t)

	out, err := c.run("tasks", "add", "wire up the payment webhook",
		"--project", "billing", "--phase", "phase-1", "--priority", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "created task 1")

	out, err = c.run("tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "wire up the payment webhook")
	assert.Contains(t, out, "TODO")
	assert.Contains(t, out, "billing")
}

// TestTasksListStatusFilter verifies the status filter and alias handling.
func TestTasksListStatusFilter(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("tasks", "add", "first task")
	require.NoError(t, err)

	out, err := c.run("tasks", "--status", "todo")
	require.NoError(t, err)
	assert.Contains(t, out, "first task")

	out, err = c.run("tasks", "--status", "blocked")
	require.NoError(t, err)
	assert.Contains(t, out, "no tasks")

	_, err = c.run("tasks", "--status", "bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidStatus)
}

// TestTasksListJSON verifies machine-readable output.
func TestTasksListJSON(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("tasks", "add", "json task", "--priority", "3")
	require.NoError(t, err)

	out, err := c.run("tasks", "--output", "json")
	require.NoError(t, err)

	var tasks []domain.Task
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "json task", tasks[0].Name)
	assert.Equal(t, 3, tasks[0].Priority)
}

// TestTasksShow verifies the detail view includes history.
func TestTasksShow(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("tasks", "add", "inspect me", "--plan", "do the thing")
	require.NoError(t, err)

	out, err := c.run("tasks", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "task 1: inspect me")
	assert.Contains(t, out, "status:   TODO")
	assert.Contains(t, out, "history:")
}

// TestTasksShowNotFound verifies the missing-task error path.
func TestTasksShowNotFound(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("tasks", "show", "99")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

// TestTasksShowRejectsBadID verifies id argument validation.
func TestTasksShowRejectsBadID(t *testing.T) {
	c := newCLITest(t)

	for _, arg := range []string{"zero", "0", "-4"} {
		_, err := c.run("tasks", "show", arg)
		require.Error(t, err, arg)
		assert.Equal(t, ExitInvalidInput, ExitCodeForError(err), arg)
	}
}

// TestTasksAddRejectsEmptyName verifies name validation.
func TestTasksAddRejectsEmptyName(t *testing.T) {
	c := newCLITest(t)

	_, err := c.run("tasks", "add", "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}
