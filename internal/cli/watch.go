package cli

import (
	"context"
	stderrors "errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// AddWatchCommand adds the watch command to the root command.
func AddWatchCommand(root *cobra.Command, flags *GlobalFlags) {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run dispatch passes on a timer until interrupted",
		Long: `Watch runs an immediate dispatch pass and then repeats on the given
interval until SIGINT or SIGTERM. Errors in individual passes are logged and
the loop continues; only a failure to start is fatal. The single-writer lock
is held for the lifetime of the loop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, flags, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between passes (default from config)")
	root.AddCommand(cmd)
}

// runWatch runs the dispatch loop until the context is canceled by a
// shutdown signal.
func runWatch(cmd *cobra.Command, flags *GlobalFlags, interval time.Duration) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if interval > 0 {
		cfg.Dispatch.WatchInterval = interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, cleanup, err := setupDispatcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := GetLogger()
	logger.Info().
		Dur("interval", cfg.Dispatch.WatchInterval).
		Str("db", cfg.Store.Path).
		Msg("watch started")

	// Cancellation via signal is the normal way out of the loop.
	if err := d.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("watch stopped")
	return nil
}
