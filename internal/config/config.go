// Package config provides configuration management for foreman with layered
// precedence.
//
// Configuration sources are loaded in the following order (highest precedence
// first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (FOREMAN_* prefix)
//  3. Project config (.foreman/config.yaml)
//  4. Global config (~/.foreman/config.yaml)
//  5. Built-in defaults
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for foreman.
type Config struct {
	// Store contains settings for the task store.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Dispatch contains scheduling settings for the dispatch loop.
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`

	// Builder configures the build-role workers.
	Builder RoleConfig `yaml:"builder" mapstructure:"builder"`

	// Validator configures the validate-role workers.
	Validator RoleConfig `yaml:"validator" mapstructure:"validator"`

	// Heartbeat contains settings for the status-summary publisher.
	Heartbeat HeartbeatConfig `yaml:"heartbeat" mapstructure:"heartbeat"`

	// Notifications contains settings for operator notifications.
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
}

// StoreConfig contains settings for the task store.
type StoreConfig struct {
	// Path is the SQLite database file path. Empty means
	// ~/.foreman/foreman.db.
	Path string `yaml:"path" mapstructure:"path"`

	// Retention is how long completed tasks and their logs are kept before
	// the end-of-pass sweep purges them.
	Retention time.Duration `yaml:"retention" mapstructure:"retention"`
}

// DispatchConfig contains scheduling settings for the dispatch loop.
type DispatchConfig struct {
	// StaleThreshold is the elapsed-runtime bound after which an in-progress
	// worker is treated as stale even if its process still exists. Must be at
	// least as large as both role timeouts so a worker's own timeout fires
	// before reconciliation classifies it as abruptly stopped.
	StaleThreshold time.Duration `yaml:"stale_threshold" mapstructure:"stale_threshold"`

	// GracePeriod is the wait between graceful and forceful termination when
	// killing a stale worker.
	GracePeriod time.Duration `yaml:"grace_period" mapstructure:"grace_period"`

	// QuestionExpiry is how long a pending worker question stays open before
	// it is marked expired.
	QuestionExpiry time.Duration `yaml:"question_expiry" mapstructure:"question_expiry"`

	// WatchInterval is the tick between passes in `foreman watch`.
	WatchInterval time.Duration `yaml:"watch_interval" mapstructure:"watch_interval"`
}

// RoleConfig configures one worker role.
type RoleConfig struct {
	// Command is the agent executable (plus leading arguments) launched for
	// this role. The task payload is written to the worker's stdin.
	Command []string `yaml:"command" mapstructure:"command"`

	// Slots caps the number of concurrently running workers for the role.
	Slots int `yaml:"slots" mapstructure:"slots"`

	// MaxAttempts is the attempt budget before a task escalates to BLOCKED.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`

	// Timeout is the hard wall-clock bound passed to the worker launch.
	// Must not exceed the dispatch stale threshold.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// HeartbeatConfig contains settings for the status-summary publisher.
type HeartbeatConfig struct {
	// Enabled controls whether per-state counts are published after each
	// pass. The summary is always written to the store regardless.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// RedisURL is the cache connection URL (e.g., redis://localhost:6379).
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`

	// Key is the cache key the summary is published under.
	Key string `yaml:"key" mapstructure:"key"`

	// TTL is the cache entry lifetime; it should exceed the dispatch
	// interval so monitors never observe an expired key between passes.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// NotificationsConfig contains settings for operator notifications.
type NotificationsConfig struct {
	// Quiet suppresses all notifications.
	Quiet bool `yaml:"quiet" mapstructure:"quiet"`

	// Events lists the event kinds that are delivered. Empty means all.
	// Supported: "started", "ready", "complete", "blocker",
	// "blocked-summary", "reset"
	Events []string `yaml:"events" mapstructure:"events"`
}
