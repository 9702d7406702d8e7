// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// EnvLogLevel is consulted when no level is passed explicitly.
const EnvLogLevel = "BOOTKIT_LOG_LEVEL"

// ParseLevel maps a level name onto a charmbracelet level. Unknown names
// fall back to info.
func ParseLevel(logLevel string) log.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "trace", "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewHandler builds a text handler writing to w (stderr when nil).
func NewHandler(logLevel string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}

	lvl := ParseLevel(logLevel)
	trace := strings.EqualFold(strings.TrimSpace(logLevel), "trace")

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: lvl == log.DebugLevel,
		ReportCaller:    trace,
		Prefix:          "bootkit",
	})
}

// SetupLogger installs a handler as the slog default and returns the logger.
// An empty level reads BOOTKIT_LOG_LEVEL.
func SetupLogger(logLevel string) *slog.Logger {
	if logLevel == "" {
		logLevel = os.Getenv(EnvLogLevel)
	}
	logger := slog.New(NewHandler(logLevel, os.Stderr))
	slog.SetDefault(logger)
	return logger
}
