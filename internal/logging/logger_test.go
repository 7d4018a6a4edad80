package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{"warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"info", INFO},
		{"", INFO},
		{"verbose", INFO},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()
	assert.Equal(t, INFO, config.Level)
	assert.True(t, config.EnableConsole)
	assert.True(t, config.RedactSensitive)
	assert.Empty(t, config.OutputFile)
}

func TestNewLogger_NoOutputsIsNoOp(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: INFO})
	require.NoError(t, err)
	_, ok := logger.(*NoOpLogger)
	assert.True(t, ok, "expected NoOpLogger, got %T", logger)
}

func TestNewLogger_FileWritesJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "drivepush.log")

	logger, err := NewLogger(LogConfig{Level: DEBUG, OutputFile: logPath})
	require.NoError(t, err)

	logger.WithTraceID("trace-1234").Info("uploaded", F("name", "a.txt"), F("bytes", 42))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "uploaded", entry["msg"])
	assert.Equal(t, "a.txt", entry["name"])
	assert.Equal(t, "trace-1234", entry["traceId"])
	assert.Equal(t, float64(42), entry["bytes"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithCore(core, WARN, false)

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")
	assert.Equal(t, 2, logs.Len())

	logger.SetLevel(DEBUG)
	logger.Debug("d2")
	assert.Equal(t, 3, logs.Len())
}

func TestLogger_RedactsSensitiveValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithCore(core, DEBUG, true)

	logger.Info("header Authorization: Bearer ya29.secret", F("body", `{"refresh_token":"1//abc"}`))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Message, "ya29.secret")
	body := entries[0].ContextMap()["body"].(string)
	assert.NotContains(t, body, "1//abc")
	assert.Contains(t, body, "[REDACTED]")
}

func TestLogger_WithContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithCore(core, DEBUG, false)

	ctx := ContextWithTraceID(context.Background(), "abc-123")
	logger.WithContext(ctx).Info("hello")
	logger.WithContext(context.Background()).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc-123", entries[0].ContextMap()["traceId"])
	_, has := entries[1].ContextMap()["traceId"]
	assert.False(t, has)
}

func TestRedactSensitiveData(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		excluded string
	}{
		{"bearer", "Bearer abc.def-ghi", "abc.def-ghi"},
		{"access token", "access_token=xyz987", "xyz987"},
		{"client secret", `"client_secret": "GOCSPX-zzz"`, "GOCSPX-zzz"},
		{"auth header", "authorization: basic-token", "basic-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := redactSensitiveData(tt.in)
			assert.NotContains(t, out, tt.excluded)
		})
	}
}
