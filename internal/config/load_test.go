package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryworks/foreman/internal/constants"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFromFile_AppliesValuesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
store:
  path: /tmp/foreman-test.db
builder:
  command: ["agent", "--role", "builder"]
  slots: 5
dispatch:
  stale_threshold: 45m
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/tmp/foreman-test.db", cfg.Store.Path)
	assert.Equal(t, []string{"agent", "--role", "builder"}, cfg.Builder.Command)
	assert.Equal(t, 5, cfg.Builder.Slots)
	assert.Equal(t, 45*time.Minute, cfg.Dispatch.StaleThreshold)

	// Untouched sections keep their defaults.
	assert.Equal(t, constants.DefaultValidatorSlots, cfg.Validator.Slots)
	assert.Equal(t, constants.DefaultRetention, cfg.Store.Retention)
}

func TestLoadFromFile_RejectsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, `
builder:
  slots: 0
`)

	cfg, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	t.Setenv("FOREMAN_BUILDER_SLOTS", "7")

	path := writeConfigFile(t, `
builder:
  slots: 2
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Builder.Slots, "env var should take precedence over the config file")
}

func TestLoadWithOverrides_AppliesNonZeroValues(t *testing.T) {
	// Run from a directory without a project config so only defaults apply.
	tempDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	defer func() { _ = os.Chdir(oldWd) }()
	t.Setenv("HOME", tempDir)

	overrides := &Config{
		Store:    StoreConfig{Path: "/tmp/override.db"},
		Dispatch: DispatchConfig{WatchInterval: 2 * time.Minute},
		Builder:  RoleConfig{Slots: 9},
	}

	cfg, err := LoadWithOverrides(overrides)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Store.Path)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.WatchInterval)
	assert.Equal(t, 9, cfg.Builder.Slots)

	// Fields the overrides left zero keep their defaults.
	assert.Equal(t, constants.DefaultBuilderAttempts, cfg.Builder.MaxAttempts)
}

func TestLoadWithOverrides_HeartbeatURLEnablesPublishing(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	defer func() { _ = os.Chdir(oldWd) }()
	t.Setenv("HOME", tempDir)

	overrides := &Config{
		Heartbeat: HeartbeatConfig{RedisURL: "redis://localhost:6379"},
	}

	cfg, err := LoadWithOverrides(overrides)
	require.NoError(t, err)

	assert.True(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, "redis://localhost:6379", cfg.Heartbeat.RedisURL)
}
