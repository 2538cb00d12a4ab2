package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	"github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/store"
)

// AddTasksCommand adds the tasks command group to the root command.
func AddTasksCommand(root *cobra.Command, flags *GlobalFlags) {
	var (
		statusFilter string
		project      string
		phase        string
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and inspect tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listTasks(cmd, flags, statusFilter, project, phase)
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (todo|in_progress|ready|complete|blocked)")
	cmd.Flags().StringVar(&project, "project", "", "filter by project label")
	cmd.Flags().StringVar(&phase, "phase", "", "filter by phase label")

	cmd.AddCommand(newTasksShowCmd(flags))
	cmd.AddCommand(newTasksAddCmd(flags))
	root.AddCommand(cmd)
}

// listTasks prints tasks matching the optional filters, highest priority
// first.
func listTasks(cmd *cobra.Command, flags *GlobalFlags, statusFilter, project, phase string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	filter := store.Filter{
		Project:         project,
		Phase:           phase,
		OrderByPriority: true,
	}
	if statusFilter != "" {
		status, ok := constants.NormalizeStatus(statusFilter)
		if !ok {
			return errors.Wrapf(errors.ErrInvalidStatus, "%q", statusFilter)
		}
		filter.Statuses = []constants.TaskStatus{status}
	}

	tasks, err := st.ListTasks(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return printJSON(cmd, tasks)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tROLE\tPRI\tATT\tPROJECT\tPHASE\tNAME")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			t.ID, t.Status, t.Role, t.Priority, t.AttemptCount, t.Project, t.Phase, t.Name)
	}
	return w.Flush()
}

// newTasksShowCmd builds `foreman tasks show <id>`, which prints one task
// with its status history and incident log.
func newTasksShowCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task with its history and incident log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return showTask(cmd, flags, id)
		},
	}
}

// showTask prints one task in full.
func showTask(cmd *cobra.Command, flags *GlobalFlags, id int64) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	task, err := st.GetTask(ctx, id)
	if err != nil {
		return err
	}
	history, err := st.ListHistory(ctx, id)
	if err != nil {
		return err
	}
	reasons, err := st.ListBlockedReasons(ctx, id)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return printJSON(cmd, struct {
			Task    *domain.Task           `json:"task"`
			History []domain.TaskHistory   `json:"history"`
			Reasons []domain.BlockedReason `json:"blocked_reasons,omitempty"`
		}{task, history, reasons})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "task %d: %s\n", task.ID, task.Name)
	fmt.Fprintf(out, "  status:   %s (role %s, attempt %d)\n", task.Status, task.Role, task.AttemptCount)
	if task.Project != "" || task.Phase != "" {
		fmt.Fprintf(out, "  phase:    %s/%s\n", task.Project, task.Phase)
	}
	fmt.Fprintf(out, "  priority: %d\n", task.Priority)
	if task.HasWorker() {
		fmt.Fprintf(out, "  worker:   pid %d run %s\n", task.WorkerPID, task.RunID)
	}
	if task.BlockedReason != "" {
		fmt.Fprintf(out, "  blocked:  %s\n", task.BlockedReason)
	}
	if task.Solution != "" {
		fmt.Fprintf(out, "  solution: %s\n", strings.ReplaceAll(task.Solution, "\n", "; "))
	}

	if len(history) > 0 {
		fmt.Fprintln(out, "history:")
		for _, h := range history {
			line := fmt.Sprintf("  %s  %s", h.ChangedAt.Format("2006-01-02 15:04:05"), h.Status)
			if h.Detail != "" {
				line += "  " + h.Detail
			}
			fmt.Fprintln(out, line)
		}
	}
	if len(reasons) > 0 {
		fmt.Fprintln(out, "incidents:")
		for i, r := range reasons {
			fmt.Fprintf(out, "  %d. %s\n", i+1, r.Reason)
		}
	}
	return nil
}

// newTasksAddCmd builds `foreman tasks add <name>`. Task creation normally
// comes from the external planner; this exists for seeding and manual
// testing.
func newTasksAddCmd(flags *GlobalFlags) *cobra.Command {
	var (
		project  string
		phase    string
		priority int
		plan     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a task to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.Wrap(errors.ErrInvalidArgument, "task name cannot be empty")
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

			id, err := st.CreateTask(cmd.Context(), &domain.Task{
				Name:     name,
				Project:  project,
				Phase:    phase,
				Priority: priority,
				Plan:     plan,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created task %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project label")
	cmd.Flags().StringVar(&phase, "phase", "", "phase label")
	cmd.Flags().IntVar(&priority, "priority", 0, "dispatch priority (higher first)")
	cmd.Flags().StringVar(&plan, "plan", "", "implementation plan handed to the worker")
	return cmd
}

// parseTaskID parses a positive task id argument.
func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidArgument, "task id %q", arg)
	}
	return id, nil
}
