package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/errors"
)

// AddUnblockCommand adds the unblock command to the root command.
func AddUnblockCommand(root *cobra.Command, flags *GlobalFlags) {
	var (
		all      bool
		target   string
		solution string
	)

	cmd := &cobra.Command{
		Use:   "unblock <id>",
		Short: "Release a blocked task back into the queue",
		Long: `Unblock returns a BLOCKED task to the queue, resets its attempt budget,
and clears its incident log. The optional --solution text is appended to the
task's solution notes and handed to the next worker. By default the task
returns to TODO; --status ready returns it directly to READY_FOR_TESTING
when the build itself was fine and only validation needs to rerun.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnblock(cmd, flags, args, all, target, solution)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "unblock every blocked task")
	cmd.Flags().StringVar(&target, "status", "todo", "status to return the task to (todo|ready)")
	cmd.Flags().StringVar(&solution, "solution", "", "operator guidance appended to the task's solution notes")
	root.AddCommand(cmd)
}

// runUnblock releases one or all blocked tasks.
func runUnblock(cmd *cobra.Command, flags *GlobalFlags, args []string, all bool, target, solution string) error {
	if all == (len(args) == 1) {
		return errors.Wrap(errors.ErrInvalidArgument, "provide a task id or --all, not both")
	}

	targetStatus, err := unblockTarget(target)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	out := cmd.OutOrStdout()
	if all {
		released, err := st.UnblockAll(cmd.Context(), targetStatus, solution)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "unblocked %d tasks to %s\n", released, targetStatus)
		return nil
	}

	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	if err := st.Unblock(cmd.Context(), id, targetStatus, solution); err != nil {
		return err
	}
	fmt.Fprintf(out, "unblocked task %d to %s\n", id, targetStatus)
	return nil
}

// unblockTarget maps the --status flag to a valid unblock destination.
// Only queue states are legal; a task can never be unblocked straight into
// IN_PROGRESS or COMPLETE.
func unblockTarget(target string) (constants.TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "", "todo":
		return constants.TaskStatusTodo, nil
	case "ready", "ready_for_testing", "ready-for-testing":
		return constants.TaskStatusReadyForTesting, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidStatus, "unblock target %q must be todo or ready", target)
	}
}
