package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.corerag/logs, falling back to a temp directory.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".corerag", "logs")
	}
	return filepath.Join(home, ".corerag", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// EnsureLogDir creates the directory containing path, if needed.
func EnsureLogDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
