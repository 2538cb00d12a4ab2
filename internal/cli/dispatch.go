package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryworks/foreman/internal/config"
	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/dispatch"
	"github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/flock"
	"github.com/quarryworks/foreman/internal/heartbeat"
)

// AddDispatchCommand adds the dispatch command to the root command.
func AddDispatchCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run a single dispatch pass",
		Long: `Dispatch runs exactly one reconciliation and scheduling pass against the
task store, then exits. This is the entry point an external timer (cron,
systemd) invokes. A file lock next to the database guarantees only one
dispatcher runs against a store at a time; a second invocation fails fast.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDispatchPass(cmd, flags)
		},
	}
	root.AddCommand(cmd)
}

// runDispatchPass performs one locked dispatch pass and reports the result.
func runDispatchPass(cmd *cobra.Command, flags *GlobalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	d, cleanup, err := setupDispatcher(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := d.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	return printPassResult(cmd, flags, result)
}

// setupDispatcher acquires the single-writer lock, opens the store, and
// builds a production dispatcher. The returned cleanup releases everything
// in reverse order.
func setupDispatcher(ctx context.Context, cfg *config.Config) (*dispatch.Dispatcher, func(), error) {
	lock, err := flock.Acquire(cfg.Store.Path + constants.LockFileSuffix)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		_ = lock.Release()
		return nil, nil, err
	}

	outDir, err := workerOutputDir()
	if err != nil {
		_ = st.Close()
		_ = lock.Release()
		return nil, nil, err
	}

	logger := GetLogger()
	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithOutputDir(outDir),
	}

	var hb *heartbeat.RedisPublisher
	if cfg.Heartbeat.Enabled {
		hb, err = heartbeat.NewRedisPublisher(ctx, cfg.Heartbeat.RedisURL, cfg.Heartbeat.Key, cfg.Heartbeat.TTL, logger)
		if err != nil {
			_ = st.Close()
			_ = lock.Release()
			return nil, nil, errors.Wrap(err, "failed to connect heartbeat publisher")
		}
		opts = append(opts, dispatch.WithHeartbeat(hb))
	}

	cleanup := func() {
		if hb != nil {
			_ = hb.Close()
		}
		_ = st.Close()
		_ = lock.Release()
	}

	d, err := dispatch.New(cfg, st, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return d, cleanup, nil
}

// printPassResult renders a pass result in the selected output format.
func printPassResult(cmd *cobra.Command, flags *GlobalFlags, result *dispatch.PassResult) error {
	if flags.Output == OutputJSON {
		return printJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "launched: %d builders, %d validators\n", result.LaunchedBuilders, result.LaunchedValidators)
	fmt.Fprintf(out, "outcomes: %d ready, %d complete, %d reset, %d blocked\n",
		result.ReadyTasks, result.CompletedTasks, result.ResetTasks, result.BlockedTasks)
	if result.Normalized > 0 {
		fmt.Fprintf(out, "normalized %d status values\n", result.Normalized)
	}
	if result.ExpiredQuestions > 0 || result.SweptTasks > 0 {
		fmt.Fprintf(out, "housekeeping: %d questions expired, %d tasks swept\n",
			result.ExpiredQuestions, result.SweptTasks)
	}
	fmt.Fprintf(out, "queue: %d todo, %d in progress, %d ready, %d blocked, %d complete\n",
		result.Summary.Todo, result.Summary.InProgress, result.Summary.ReadyForTesting,
		result.Summary.Blocked, result.Summary.Complete)
	return nil
}
