package catalog

import (
	"fmt"
	"os"
)

// Sentence index backends.
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
)

// NewSentenceIndex creates a sentence index at basePath using the
// named backend. The backend's extension is appended, so both can
// coexist under one base path. An empty basePath builds an in-memory
// index and an empty backend means SQLite.
func NewSentenceIndex(basePath, backend string) (SentenceIndex, error) {
	switch backend {
	case BackendSQLite, "":
		path := basePath
		if path != "" {
			path = basePath + ".db"
		}
		return NewSQLiteSentenceIndex(path)
	case BackendBleve:
		path := basePath
		if path != "" {
			path = basePath + ".bleve"
		}
		return NewBleveSentenceIndex(path)
	default:
		return nil, fmt.Errorf("unknown index backend %q (valid options: %s, %s)",
			backend, BackendSQLite, BackendBleve)
	}
}

// DetectBackend reports which backend already has an index at
// basePath, defaulting to SQLite when neither does. It lets commands
// reuse an existing index without a config flag.
func DetectBackend(basePath string) string {
	if fileExists(basePath + ".db") {
		return BackendSQLite
	}
	if dirExists(basePath + ".bleve") {
		return BackendBleve
	}
	return BackendSQLite
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
