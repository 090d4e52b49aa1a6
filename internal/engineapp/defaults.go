package engineapp

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults returns application default paths, checking environment
// variables first.
//
// Environment variables:
//   - NETSYNC_CONFIG: config file location (default: ~/.config/netsync.toml)
//   - NETSYNC_HOME: base directory for netsync's own data (default: ~/.local/share/netsync)
func Defaults() (configPath, baseDir, logDir string, err error) {
	configPath, err = getConfigPath()
	if err != nil {
		return "", "", "", err
	}
	baseDir, err = getBaseDir()
	if err != nil {
		return "", "", "", err
	}
	return configPath, baseDir, filepath.Join(baseDir, "log"), nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("NETSYNC_CONFIG"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "netsync.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("NETSYNC_HOME"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "netsync"), nil
}
