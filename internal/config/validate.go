package config

import (
	"time"

	"github.com/quarryworks/foreman/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - slot caps must be at least 1 per role
//   - attempt budgets must be at least 1 per role
//   - role timeouts must be positive and must not exceed the stale threshold,
//     so a worker's own timeout fires before reconciliation declares it dead
//   - grace period must be positive and below the stale threshold
//   - retention and question expiry must be positive
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateRole(&cfg.Builder, "builder", cfg.Dispatch.StaleThreshold); err != nil {
		return err
	}
	if err := validateRole(&cfg.Validator, "validator", cfg.Dispatch.StaleThreshold); err != nil {
		return err
	}
	return validateDispatch(cfg)
}

// validateRole checks a single role's configuration.
func validateRole(cfg *RoleConfig, name string, staleThreshold time.Duration) error {
	if cfg.Slots < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidSlots,
			"%s slots must be at least 1, got %d", name, cfg.Slots)
	}
	if cfg.MaxAttempts < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidAttempts,
			"%s max_attempts must be at least 1, got %d", name, cfg.MaxAttempts)
	}
	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidTimeout,
			"%s timeout must be positive, got %s", name, cfg.Timeout)
	}
	if cfg.Timeout > staleThreshold {
		return errors.Wrapf(errors.ErrConfigInvalidTimeout,
			"%s timeout %s exceeds stale threshold %s", name, cfg.Timeout, staleThreshold)
	}
	return nil
}

// validateDispatch checks the dispatch-loop configuration.
func validateDispatch(cfg *Config) error {
	d := &cfg.Dispatch
	if d.StaleThreshold <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidTimeout,
			"stale_threshold must be positive, got %s", d.StaleThreshold)
	}
	if d.GracePeriod <= 0 || d.GracePeriod >= d.StaleThreshold {
		return errors.Wrapf(errors.ErrConfigInvalidTimeout,
			"grace_period must be positive and below stale_threshold, got %s", d.GracePeriod)
	}
	if d.QuestionExpiry <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidTimeout,
			"question_expiry must be positive, got %s", d.QuestionExpiry)
	}
	if cfg.Store.Retention <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRetention,
			"retention must be positive, got %s", cfg.Store.Retention)
	}
	if cfg.Heartbeat.Enabled && cfg.Heartbeat.RedisURL == "" {
		return errors.Wrap(errors.ErrEmptyValue, "heartbeat enabled without redis_url")
	}
	return nil
}
