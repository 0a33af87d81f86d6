package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".cockpit"

// DataDir returns the base data directory for Cockpit.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// SettingsPath returns the path to the TOML settings file.
func SettingsPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.toml"), nil
}

// OverlayDBPath returns the path to the bbolt overlay database holding
// pins, custom names, activity stamps and approval rules.
func OverlayDBPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "overlays.db"), nil
}

// TokenFallbackPath returns the path of the on-disk token file used when no
// OS keychain is available.
func TokenFallbackPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "token"), nil
}

// LogPath returns the path of the client log file.
func LogPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "cockpit.log"), nil
}
