// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/todosync/internal/model"
)

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a text logger writing to stderr, or to a rotating file when
// cfg.File is set.
func New(cfg model.LogConfig) *slog.Logger {
	return slog.New(slog.NewTextHandler(Writer(cfg, os.Stderr), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))
}

// Writer returns the destination for log output: fallback when no file is
// configured, else a lumberjack rotating file.
func Writer(cfg model.LogConfig, fallback io.Writer) io.Writer {
	if cfg.File == "" {
		return fallback
	}
	_ = os.MkdirAll(filepath.Dir(cfg.File), 0o755)
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}
