package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/quarryworks/foreman/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by config
// files, environment variables, and CLI flags. The scheduling numbers mirror
// the deployment defaults of the system foreman replaces.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			// Path: empty means ~/.foreman/foreman.db.
			Path: "",

			// Retention: two weeks keeps the audit trail inspectable without
			// unbounded growth.
			Retention: constants.DefaultRetention,
		},
		Dispatch: DispatchConfig{
			// StaleThreshold exceeds both role timeouts so a worker's own
			// timeout always fires first.
			StaleThreshold: constants.DefaultStaleThreshold,
			GracePeriod:    constants.DefaultGracePeriod,
			QuestionExpiry: constants.DefaultQuestionExpiry,
			WatchInterval:  constants.DefaultWatchInterval,
		},
		Builder: RoleConfig{
			Slots:       constants.DefaultBuilderSlots,
			MaxAttempts: constants.DefaultBuilderAttempts,
			Timeout:     constants.DefaultBuilderTimeout,
		},
		Validator: RoleConfig{
			// Slots: 1 guarantees validation runs see a stable snapshot of a
			// phase.
			Slots:       constants.DefaultValidatorSlots,
			MaxAttempts: constants.DefaultValidatorAttempts,
			Timeout:     constants.DefaultValidatorTimeout,
		},
		Heartbeat: HeartbeatConfig{
			Enabled: false,
			Key:     "foreman:status",
			TTL:     5 * time.Minute,
		},
		Notifications: NotificationsConfig{
			Quiet:  false,
			Events: nil, // all
		},
	}
}

// setDefaults registers the default configuration values with Viper.
// Keys use dot notation matching the mapstructure tags.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("store.retention", def.Store.Retention)

	v.SetDefault("dispatch.stale_threshold", def.Dispatch.StaleThreshold)
	v.SetDefault("dispatch.grace_period", def.Dispatch.GracePeriod)
	v.SetDefault("dispatch.question_expiry", def.Dispatch.QuestionExpiry)
	v.SetDefault("dispatch.watch_interval", def.Dispatch.WatchInterval)

	v.SetDefault("builder.slots", def.Builder.Slots)
	v.SetDefault("builder.max_attempts", def.Builder.MaxAttempts)
	v.SetDefault("builder.timeout", def.Builder.Timeout)

	v.SetDefault("validator.slots", def.Validator.Slots)
	v.SetDefault("validator.max_attempts", def.Validator.MaxAttempts)
	v.SetDefault("validator.timeout", def.Validator.Timeout)

	v.SetDefault("heartbeat.enabled", def.Heartbeat.Enabled)
	v.SetDefault("heartbeat.redis_url", def.Heartbeat.RedisURL)
	v.SetDefault("heartbeat.key", def.Heartbeat.Key)
	v.SetDefault("heartbeat.ttl", def.Heartbeat.TTL)

	v.SetDefault("notifications.quiet", def.Notifications.Quiet)
	v.SetDefault("notifications.events", def.Notifications.Events)
}
