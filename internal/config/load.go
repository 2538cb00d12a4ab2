package config

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/errors"
)

// newViperInstance creates a new Viper instance with standard foreman
// configuration: defaults, FOREMAN_ env prefix, and key replacer.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not
// found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// Load reads configuration from all available sources with proper precedence.
// Missing config files are not an error; only actual configuration problems
// are reported.
func Load() (*Config, error) {
	v := newViperInstance()

	// Global config provides user-wide defaults (lower precedence)
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}

	// Project config merges over global (higher precedence)
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(v)
}

// LoadWithOverrides loads configuration and applies CLI flag overrides, which
// have the highest precedence. Only non-zero override values are applied.
func LoadWithOverrides(overrides *Config) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file path, for testing and
// for explicit --config usage. Defaults and env vars still apply beneath it.
func LoadFromFile(path string) (*Config, error) {
	v := newViperInstance()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	return unmarshalAndValidate(v)
}

// unmarshalAndValidate unmarshals viper config into Config and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// loadGlobalConfig attempts to load ~/.foreman/config.yaml.
// Skips silently when the file doesn't exist or home dir is unavailable.
func loadGlobalConfig(v *viper.Viper) error {
	path, err := GlobalConfigPath()
	if err != nil || !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig attempts to load .foreman/config.yaml from the working
// directory. Skips silently when the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	path := ProjectConfigPath()
	if !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// applyOverrides copies non-zero values from overrides onto cfg.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Store.Path != "" {
		cfg.Store.Path = overrides.Store.Path
	}
	if overrides.Store.Retention > 0 {
		cfg.Store.Retention = overrides.Store.Retention
	}
	if overrides.Dispatch.StaleThreshold > 0 {
		cfg.Dispatch.StaleThreshold = overrides.Dispatch.StaleThreshold
	}
	if overrides.Dispatch.GracePeriod > 0 {
		cfg.Dispatch.GracePeriod = overrides.Dispatch.GracePeriod
	}
	if overrides.Dispatch.QuestionExpiry > 0 {
		cfg.Dispatch.QuestionExpiry = overrides.Dispatch.QuestionExpiry
	}
	if overrides.Dispatch.WatchInterval > 0 {
		cfg.Dispatch.WatchInterval = overrides.Dispatch.WatchInterval
	}
	applyRoleOverrides(&cfg.Builder, &overrides.Builder)
	applyRoleOverrides(&cfg.Validator, &overrides.Validator)
	if overrides.Heartbeat.RedisURL != "" {
		cfg.Heartbeat.RedisURL = overrides.Heartbeat.RedisURL
		cfg.Heartbeat.Enabled = true
	}
	if overrides.Notifications.Quiet {
		cfg.Notifications.Quiet = true
	}
}

// applyRoleOverrides copies non-zero role values from overrides onto cfg.
func applyRoleOverrides(cfg, overrides *RoleConfig) {
	if len(overrides.Command) > 0 {
		cfg.Command = overrides.Command
	}
	if overrides.Slots > 0 {
		cfg.Slots = overrides.Slots
	}
	if overrides.MaxAttempts > 0 {
		cfg.MaxAttempts = overrides.MaxAttempts
	}
	if overrides.Timeout > 0 {
		cfg.Timeout = overrides.Timeout
	}
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from
// strings and comma-separated command slices.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
