package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// Log files live under ~/.pretext/logs. When the home directory cannot be
// resolved the tree moves to the system temp directory instead.
const (
	appDir      = ".pretext"
	logFileName = "pretext.log"
)

// DefaultLogDir returns the directory pretext writes its logs to.
func DefaultLogDir() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, appDir, "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), logFileName)
}

// FindLogFile resolves the log file to view. An explicit path must exist;
// with no explicit path the default location is tried.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if fileExists(path) {
		return path, nil
	}
	return "", fmt.Errorf("no log file found. Run a command with --debug first.\nExpected at: %s", path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
