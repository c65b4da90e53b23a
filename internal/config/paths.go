package config

import (
	"os"
	"path/filepath"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

// GlobalConfigDir returns the path to the global configuration directory,
// typically ~/.cc-task-manager on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cctmerrors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.AppHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration
// directory, always .cc-task-manager relative to the working directory.
func ProjectConfigDir() string {
	return constants.AppHome
}

// GlobalConfigPath returns the full path to the global configuration file,
// typically ~/.cc-task-manager/config.yaml.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// ProjectConfigPath returns the relative path to the project configuration
// file, always .cc-task-manager/config.yaml.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.ConfigFileName)
}
