package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns the neurogrow data directory.
// On Unix: ~/.neurogrow
// On Windows: %USERPROFILE%\.neurogrow
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".neurogrow"), nil
}

// DefaultDBPath returns the default SQLite database path inside DataDir.
func DefaultDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "neurogrow.db"), nil
}
