package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quarryworks/foreman/internal/config"
	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/errors"
)

// AddInitCommand adds the init command to the root command.
func AddInitCommand(root *cobra.Command, _ *GlobalFlags) {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default global config file",
		Long: `Init writes the default configuration to ~/.foreman/config.yaml so the
scheduling knobs are visible and editable. Existing config files are never
overwritten unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	root.AddCommand(cmd)
}

// runInit writes the default config file under the foreman home.
func runInit(cmd *cobra.Command, force bool) error {
	home, err := getForemanHome()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(home, 0o750); err != nil {
		return errors.Wrapf(err, "failed to create %s", home)
	}

	path := filepath.Join(home, constants.ConfigFileName+"."+constants.ConfigFileExt)
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Wrapf(errors.ErrConfigExists, "%s", path)
	}

	data, err := yaml.Marshal(defaultConfigDoc())
	if err != nil {
		return errors.Wrap(err, "failed to encode default config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

// defaultConfigDoc renders the default config with durations as strings
// ("45m0s") so the written file reads back through the duration decode hook.
func defaultConfigDoc() map[string]any {
	def := config.DefaultConfig()

	roleDoc := func(r config.RoleConfig) map[string]any {
		return map[string]any{
			"command":      r.Command,
			"slots":        r.Slots,
			"max_attempts": r.MaxAttempts,
			"timeout":      r.Timeout.String(),
		}
	}

	return map[string]any{
		"store": map[string]any{
			"path":      def.Store.Path,
			"retention": def.Store.Retention.String(),
		},
		"dispatch": map[string]any{
			"stale_threshold": def.Dispatch.StaleThreshold.String(),
			"grace_period":    def.Dispatch.GracePeriod.String(),
			"question_expiry": def.Dispatch.QuestionExpiry.String(),
			"watch_interval":  def.Dispatch.WatchInterval.String(),
		},
		"builder":   roleDoc(def.Builder),
		"validator": roleDoc(def.Validator),
		"heartbeat": map[string]any{
			"enabled":   def.Heartbeat.Enabled,
			"redis_url": def.Heartbeat.RedisURL,
			"key":       def.Heartbeat.Key,
			"ttl":       def.Heartbeat.TTL.String(),
		},
		"notifications": map[string]any{
			"quiet":  def.Notifications.Quiet,
			"events": def.Notifications.Events,
		},
	}
}
