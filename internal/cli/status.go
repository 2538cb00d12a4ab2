package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-state task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, flags)
		},
	}
	root.AddCommand(cmd)
}

// runStatus prints the current task counts straight from the store rather
// than the last saved summary, so it reflects writes made since the last
// dispatch pass.
func runStatus(cmd *cobra.Command, flags *GlobalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	summary, err := st.CountByStatus(cmd.Context())
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return printJSON(cmd, summary)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "TODO               %d\n", summary.Todo)
	fmt.Fprintf(out, "IN_PROGRESS        %d\n", summary.InProgress)
	fmt.Fprintf(out, "READY_FOR_TESTING  %d\n", summary.ReadyForTesting)
	fmt.Fprintf(out, "BLOCKED            %d\n", summary.Blocked)
	fmt.Fprintf(out, "COMPLETE           %d\n", summary.Complete)
	fmt.Fprintf(out, "total: %d tasks, %d pending questions\n", summary.Total(), summary.PendingQuestion)
	return nil
}
