// Package config provides path helpers for the pipeline's on-disk state.
package config

import (
	"os"
	"path/filepath"
)

// GetDataPath returns the base data directory.
// It checks for the DATA_PATH environment variable, otherwise uses a default.
func GetDataPath() string {
	if path := os.Getenv("DATA_PATH"); path != "" {
		return path
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Join(cwd, ".data")
}

// GetPersistencePath returns the directory holding the append-only logs
// (jobs, attempts, alerts). It checks PERSIST_PATH, otherwise defaults
// under GetDataPath.
func GetPersistencePath() string {
	if path := os.Getenv("PERSIST_PATH"); path != "" {
		return path
	}

	return filepath.Join(GetDataPath(), "state")
}

// GetPersistenceDBPath returns the path to the SQLite database file backing
// the persistence port.
func GetPersistenceDBPath() string {
	return filepath.Join(GetPersistencePath(), "outbound.db")
}
