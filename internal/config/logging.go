package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	logFilePrefix = "chatrelay-"
	logFileSuffix = ".log"
	// logTimeLayout sorts lexically in time order and is safe in file names.
	logTimeLayout = "20060102T150405.000"
)

// LogConfig controls the optional file sink next to stdout.
type LogConfig struct {
	// Dir is LOG_DIR. Empty disables the file sink.
	Dir string
	// MaxFiles is LOG_MAX_FILES, the number of log files kept including the new one.
	// Zero or less keeps every file.
	MaxFiles int
}

// Enabled reports whether a log directory is configured.
func (c LogConfig) Enabled() bool {
	return c.Dir != ""
}

// OpenLogFile creates a fresh chatrelay-<timestamp>.log under c.Dir and prunes the
// oldest files beyond c.MaxFiles. The caller closes the file.
func (c LogConfig) OpenLogFile(now time.Time) (*os.File, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := filepath.Join(c.Dir, logFilePrefix+now.UTC().Format(logTimeLayout)+logFileSuffix)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	if removed, err := c.prune(); err != nil {
		// The process logger is not set up yet; the default one writes to stderr.
		slog.Warn("log pruning failed", "dir", c.Dir, "error", err)
	} else if len(removed) > 0 {
		slog.Debug("old log files removed", "dir", c.Dir, "count", len(removed))
	}
	return f, nil
}

// prune removes the oldest service log files so at most MaxFiles remain.
func (c LogConfig) prune() ([]string, error) {
	if c.MaxFiles <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, err
	}

	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), logFilePrefix) && strings.HasSuffix(e.Name(), logFileSuffix) {
			logs = append(logs, e.Name())
		}
	}
	if len(logs) <= c.MaxFiles {
		return nil, nil
	}
	slices.Sort(logs)

	stale := logs[:len(logs)-c.MaxFiles]
	for _, name := range stale {
		if err := os.Remove(filepath.Join(c.Dir, name)); err != nil {
			return nil, fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return stale, nil
}
