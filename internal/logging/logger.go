package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a config string to a LogLevel. Unknown values fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Field is a structured key/value attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the logging surface used across the module.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithTraceID(traceID string) Logger
	WithContext(ctx context.Context) Logger
	SetLevel(level LogLevel)
	Close() error
}

// LogConfig configures NewLogger.
type LogConfig struct {
	Level           LogLevel
	OutputFile      string
	EnableConsole   bool
	ConsoleColor    bool
	RedactSensitive bool
}

// DefaultLogConfig returns the defaults used when nothing is configured.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:           INFO,
		EnableConsole:   true,
		ConsoleColor:    isatty.IsTerminal(os.Stderr.Fd()),
		RedactSensitive: true,
	}
}

// NewLogger builds a zap-backed Logger writing to stderr, a JSON file, or both.
func NewLogger(config LogConfig) (Logger, error) {
	level := zap.NewAtomicLevelAt(config.Level.zapLevel())

	var cores []zapcore.Core
	var file *os.File

	if config.EnableConsole {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = ""
		encCfg.CallerKey = ""
		if config.ConsoleColor {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(f),
			level,
		))
	}

	if len(cores) == 0 {
		return NewNoOpLogger(), nil
	}

	return &zapLogger{
		base:   zap.New(zapcore.NewTee(cores...)),
		level:  level,
		redact: config.RedactSensitive,
		file:   file,
	}, nil
}

// NewLoggerWithCore wraps an arbitrary zap core. Tests use it with zaptest/observer.
func NewLoggerWithCore(core zapcore.Core, level LogLevel, redact bool) Logger {
	atomic := zap.NewAtomicLevelAt(level.zapLevel())
	return &zapLogger{
		base:   zap.New(&levelCore{Core: core, level: atomic}),
		level:  atomic,
		redact: redact,
	}
}

type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

type zapLogger struct {
	base   *zap.Logger
	level  zap.AtomicLevel
	redact bool
	file   *os.File
}

func (l *zapLogger) fields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if l.redact {
			if s, ok := f.Value.(string); ok {
				out = append(out, zap.String(f.Key, redactSensitiveData(s)))
				continue
			}
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (l *zapLogger) msg(m string) string {
	if l.redact {
		return redactSensitiveData(m)
	}
	return m
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.base.Debug(l.msg(msg), l.fields(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.base.Info(l.msg(msg), l.fields(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.base.Warn(l.msg(msg), l.fields(fields)...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.base.Error(l.msg(msg), l.fields(fields)...)
}

func (l *zapLogger) WithTraceID(traceID string) Logger {
	if traceID == "" {
		return l
	}
	return &zapLogger{
		base:   l.base.With(zap.String("traceId", traceID)),
		level:  l.level,
		redact: l.redact,
		file:   l.file,
	}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	return l.WithTraceID(TraceIDFromContext(ctx))
}

func (l *zapLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Close flushes buffered entries and closes the log file, if any.
func (l *zapLogger) Close() error {
	_ = l.base.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (NoOpLogger) Debug(string, ...Field) {}
func (NoOpLogger) Info(string, ...Field)  {}
func (NoOpLogger) Warn(string, ...Field)  {}
func (NoOpLogger) Error(string, ...Field) {}
func (NoOpLogger) SetLevel(LogLevel)      {}
func (NoOpLogger) Close() error           { return nil }

func (n *NoOpLogger) WithTraceID(string) Logger          { return n }
func (n *NoOpLogger) WithContext(context.Context) Logger { return n }

type traceIDKey struct{}

// ContextWithTraceID attaches a trace id to ctx.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace id stored by ContextWithTraceID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}
