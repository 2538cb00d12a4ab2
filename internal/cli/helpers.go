package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarryworks/foreman/internal/clock"
	"github.com/quarryworks/foreman/internal/config"
	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/store"
)

// loadConfig loads the effective configuration for a command invocation.
// An explicit --config file replaces the layered lookup; --db overrides the
// store path either way.
func loadConfig(flags *GlobalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if flags.ConfigFile != "" {
		cfg, err = config.LoadFromFile(flags.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.DBPath != "" {
		cfg.Store.Path = flags.DBPath
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path, err = defaultDBPath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve database path")
		}
	}

	return cfg, nil
}

// defaultDBPath returns the database path under the foreman home, honoring
// the FOREMAN_HOME override.
func defaultDBPath() (string, error) {
	home, err := getForemanHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.DBFileName), nil
}

// openStore opens the task store at the configured path.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Store.Path, clock.RealClock{})
}

// workerOutputDir returns the directory worker output files are captured in.
func workerOutputDir() (string, error) {
	home, err := getForemanHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.LogsDir, "workers"), nil
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
