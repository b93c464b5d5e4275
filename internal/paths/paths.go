// Package paths resolves where asana2sql keeps its configuration and its
// SQLite database.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName = "asana2sql"

	// DefaultDataDirName is the CWD-relative data directory used when no
	// override is set.
	DefaultDataDirName = ".asana2sql-db"

	// DatabaseFileName is the database file created inside the data
	// directory when no explicit database path is configured.
	DatabaseFileName = "asana.db"
)

// Environment variable overrides.
const (
	EnvConfigDir = "ASANA2SQL_CONFIG_DIR"
	EnvDataDir   = "ASANA2SQL_DATA_DIR"
)

// platformDir holds platform lookups; tests replace them.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform configuration directory:
// $XDG_CONFIG_HOME/asana2sql or ~/.config/asana2sql on Linux, and
// os.UserConfigDir()/asana2sql elsewhere.
func DefaultConfigDir() (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// ResolveConfigDir applies flag > ASANA2SQL_CONFIG_DIR > DefaultConfigDir.
// Overrides are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstNonEmpty(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir applies flag > configured data_dir > ASANA2SQL_DATA_DIR >
// $(CWD)/.asana2sql-db.
func ResolveDataDir(flag, configured string) (string, error) {
	if dir := firstNonEmpty(flag, configured, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// DatabasePath returns the configured database path made absolute, or the
// default database file inside dataDir.
func DatabasePath(configured, dataDir string) (string, error) {
	if configured != "" {
		return filepath.Abs(configured)
	}
	return filepath.Join(dataDir, DatabaseFileName), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
