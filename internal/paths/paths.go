// Package paths resolves where hive keeps its config file and its sqlite
// database.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDirName is the directory created under the platform config and data
// roots.
const AppDirName = "hive"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "HIVE_CONFIG_DIR"
	EnvDataDir   = "HIVE_DATA_DIR"
)

// platformDir holds platform lookups so tests can replace them.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/hive (fallback ~/.config/hive)
// Other:   os.UserConfigDir()/hive
func DefaultConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/hive (fallback ~/.local/share/hive)
// Other:   os.UserConfigDir()/hive
func DefaultDataDir() (string, error) {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// appDir resolves the linux XDG variable (or its home-relative fallback) and
// uses os.UserConfigDir elsewhere.
func appDir(xdgVar string, homeFallback ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppDirName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppDirName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	parts := append([]string{home}, homeFallback...)
	return filepath.Join(append(parts, AppDirName)...), nil
}

// ResolveConfigDir returns the configuration directory: flag, then
// HIVE_CONFIG_DIR, then DefaultConfigDir. Overrides are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	return firstAbs(DefaultConfigDir, flag, os.Getenv(EnvConfigDir))
}

// ResolveDataDir returns the data directory: flag, then the data_dir config
// value, then HIVE_DATA_DIR, then DefaultDataDir. Overrides are made absolute.
func ResolveDataDir(flag, configured string) (string, error) {
	return firstAbs(DefaultDataDir, flag, configured, os.Getenv(EnvDataDir))
}

func firstAbs(fallback func() (string, error), candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return filepath.Abs(c)
		}
	}
	return fallback()
}
