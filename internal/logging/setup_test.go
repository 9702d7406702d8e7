package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		expected log.Level
	}{
		{name: "debug", logLevel: "debug", expected: log.DebugLevel},
		{name: "trace maps to debug", logLevel: "trace", expected: log.DebugLevel},
		{name: "info", logLevel: "info", expected: log.InfoLevel},
		{name: "warn", logLevel: "WARN", expected: log.WarnLevel},
		{name: "warning", logLevel: "warning", expected: log.WarnLevel},
		{name: "error", logLevel: "error", expected: log.ErrorLevel},
		{name: "empty defaults to info", logLevel: "", expected: log.InfoLevel},
		{name: "garbage defaults to info", logLevel: "loud", expected: log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.logLevel))
		})
	}
}

func TestNewHandler_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler("warn", &buf)

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))

	logger := slog.New(h)
	logger.Info("hidden")
	logger.Warn("shown", "instance", "i-123")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "i-123")
}

func TestSetupLogger_UsesEnv(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	t.Setenv(EnvLogLevel, "debug")
	logger := SetupLogger("")

	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Equal(t, logger, slog.Default())
}
