package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// DefaultConfigPath is the target file used when none is given
	DefaultConfigPath = "config.json"

	// HomeEnv overrides the data directory
	HomeEnv = "PROXYBENCH_HOME"

	databaseFile = "proxybench.db"
)

var (
	// ConfigDir holds proxybench data, ~/.proxybench unless HomeEnv is set
	ConfigDir string

	// DatabasePath is the SQLite database file for run history
	DatabasePath string
)

// Initialize resolves the data directory and creates it if missing
func Initialize() error {
	dir, err := dataDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	ConfigDir = dir
	DatabasePath = filepath.Join(dir, databaseFile)
	return nil
}

func dataDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".proxybench"), nil
}
