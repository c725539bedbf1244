package config

import (
	"os"
	"path/filepath"

	"github.com/pingcap/errors"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// HomeEnv overrides the data directory
	HomeEnv = "CHECKOUTLOAD_HOME"
)

var (
	// DataDir is the global data directory (~/.checkoutload)
	DataDir string

	// DatabasePath is the SQLite database file for load test runs
	DatabasePath string
)

// Initialize sets up the data directory.
// It creates ~/.checkoutload/ (or $CHECKOUTLOAD_HOME) if it doesn't exist.
func Initialize() error {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Annotate(err, "failed to get home directory")
		}
		dir = filepath.Join(homeDir, ".checkoutload")
	}
	return InitializeAt(dir)
}

// InitializeAt sets up dir as the data directory
func InitializeAt(dir string) error {
	DataDir = dir
	DatabasePath = filepath.Join(DataDir, "checkoutload.db")

	if err := os.MkdirAll(DataDir, DirPermissions); err != nil {
		return errors.Annotatef(err, "failed to create directory %s", DataDir)
	}
	return nil
}
