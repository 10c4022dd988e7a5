// Package paths resolves the configuration, data and descriptor directories
// used by recordctl.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user configuration directory.
const AppName = "recordkit"

// CWD-relative fallback directory names.
const (
	DefaultDataDirName   = ".recordkit-db"
	DefaultSchemaDirName = "schema"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "RECORDKIT_CONFIG_DIR"
	EnvDataDir   = "RECORDKIT_DATA_DIR"
	EnvSchemaDir = "RECORDKIT_SCHEMA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/recordkit (fallback ~/.config/recordkit)
// macOS:   ~/Library/Application Support/recordkit
// Windows: %APPDATA%/recordkit
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir returns the configuration directory: flag, then
// RECORDKIT_CONFIG_DIR, then DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	return resolve(DefaultConfigDir, flag, os.Getenv(EnvConfigDir))
}

// ResolveDataDir returns the data directory: flag, then the data_dir
// config value, then RECORDKIT_DATA_DIR, then ./.recordkit-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	return resolve(cwdJoin(DefaultDataDirName), flag, configValue, os.Getenv(EnvDataDir))
}

// ResolveSchemaDir returns the descriptor directory: flag, then the
// schema_dir config value, then RECORDKIT_SCHEMA_DIR, then ./schema.
func ResolveSchemaDir(flag, configValue string) (string, error) {
	return resolve(cwdJoin(DefaultSchemaDirName), flag, configValue, os.Getenv(EnvSchemaDir))
}

// resolve returns the first non-empty candidate as an absolute path, or the
// fallback when all are empty.
func resolve(fallback func() (string, error), candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return filepath.Abs(c)
		}
	}
	return fallback()
}

func cwdJoin(name string) func() (string, error) {
	return func() (string, error) {
		cwd, err := platformDir.getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, name), nil
	}
}
