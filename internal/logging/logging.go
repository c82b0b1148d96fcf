package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls where log lines go and how much history gets kept.
type Config struct {
	// Level is the minimum level to record: debug, info, warn, or error.
	Level string
	// FilePath is the log file location.
	FilePath string
	// MaxSizeMB caps the file size before rotation kicks in (default 10).
	MaxSizeMB int
	// MaxFiles caps how many rotated files are kept (default 5).
	MaxFiles int
	// WriteToStderr mirrors log lines to stderr as well.
	WriteToStderr bool
}

// DefaultConfig is the standard file-logging setup: info level at the
// default path, ten-megabyte files, five generations, mirrored to
// stderr.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// Setup wires up JSON file logging and returns the logger plus a cleanup
// function that flushes and closes the file. Missing directories on the
// log path are created, so --log-file may point anywhere writable.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	sinks := []io.Writer{writer}
	if cfg.WriteToStderr {
		sinks = append(sinks, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(sinks...), &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return slog.New(handler), cleanup, nil
}

// levelNames maps accepted level strings to slog levels.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel resolves a level name, falling back to info for anything it
// does not recognize.
func parseLevel(name string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(name)]; ok {
		return lvl
	}
	return slog.LevelInfo
}
