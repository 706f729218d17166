package paths

import (
	"os"
	"path/filepath"
)

// GetDataDir returns the data directory. DATA_DIR overrides the default
// ./data relative to the working directory.
func GetDataDir() string {
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		return dir
	}
	return "data"
}

// GetDBPath returns the sqlite database path inside the data directory.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "gatebot.db")
}

// EnsureDataDirs creates the data directory tree if it does not exist.
func EnsureDataDirs() error {
	return os.MkdirAll(GetDataDir(), 0755)
}
