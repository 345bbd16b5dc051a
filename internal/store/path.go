// Package store provides local database path resolution and the embedded
// schema migrations for the Roster SQLite store.
package store

import (
	"os"
	"path/filepath"
)

// DefaultDBPath returns the default path for the local Roster database:
// ~/.roster/roster.db, falling back to ./roster.db when the home
// directory cannot be resolved.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, "roster.db")
	}
	return filepath.Join(home, ".roster", "roster.db")
}
