package config

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.botboard.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".botboard")
}

// Path returns the global config file path.
func Path() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// JournalPath returns the send-journal database path.
func JournalPath() string {
	return filepath.Join(BaseDir(), "journal.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the console log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "botboard.log")
}

// EnsureDirs creates the config directory tree with proper permissions.
func EnsureDirs() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
