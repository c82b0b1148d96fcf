package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for MCP server mode. Stdout carries
// JSON-RPC frames and clients treat stray stderr output as noise at best,
// so the log file becomes the only sink.
func SetupMCPMode(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = false // never touch the protocol streams

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	logger.Info("mcp logging ready", "log_file", cfg.FilePath, "level", cfg.Level)
	return cleanup, nil
}
