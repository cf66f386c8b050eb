// Package logging configures the process-wide slog logger. The terminal UI
// owns stdout, so records go to a file unless none is configured.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config string to a level; unknown values mean info.
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

// New builds a text logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Setup opens path for appending, installs the logger as slog's default and
// returns it with a close function. An empty path discards records.
func Setup(path, level string) (*slog.Logger, func() error, error) {
	if path == "" {
		l := New(io.Discard, level)
		slog.SetDefault(l)
		return l, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	l := New(f, level)
	slog.SetDefault(l)
	return l, f.Close, nil
}
