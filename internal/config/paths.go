package config

import (
	"os"
	"path/filepath"

	"github.com/quarryworks/foreman/internal/constants"
)

// GlobalConfigDir returns the global configuration directory (~/.foreman).
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.ForemanHome), nil
}

// GlobalConfigPath returns the global config file path
// (~/.foreman/config.yaml).
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName+"."+constants.ConfigFileExt), nil
}

// ProjectConfigPath returns the project-local config file path
// (.foreman/config.yaml relative to the working directory).
func ProjectConfigPath() string {
	return filepath.Join(constants.ForemanHome, constants.ConfigFileName+"."+constants.ConfigFileExt)
}

// DefaultDBPath returns the default database path (~/.foreman/foreman.db).
func DefaultDBPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.DBFileName), nil
}

// DefaultLogPath returns the rotating log file path
// (~/.foreman/logs/foreman.log).
func DefaultLogPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.LogsDir, constants.LogFileName), nil
}
