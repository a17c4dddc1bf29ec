// Package logging provides a thin, structured logging wrapper around zap,
// with a process-wide default logger and derivation helpers for the common
// request/session/agent fields.
package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the default logger is constructed.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// Logger wraps a *zap.Logger with daemon-specific derivation helpers.
type Logger struct {
	z *zap.Logger
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide default logger, constructing it with
// INFO/console settings on first use if SetDefault was never called.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(Config{Level: "info", Format: "console"})
	})
	return defaultLogger
}

// SetDefault installs l as the process-wide default logger. It replaces any
// logger Default() may already have built, so later Default() calls return l.
func SetDefault(l *Logger) {
	defaultOnce.Do(func() {})
	defaultLogger = l
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if detectFormat(cfg.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	z := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{z: z}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func detectFormat(format string) string {
	if format == "json" {
		return "json"
	}
	return "console"
}

// Zap exposes the underlying *zap.Logger for callers that need it directly
// (e.g. gin middleware adapters).
func (l *Logger) Zap() *zap.Logger { return l.z }

// Sugar exposes the SugaredLogger form for printf-style call sites.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.z.Sugar() }

// WithFields returns a derived Logger with the given structured fields
// attached to every subsequent log line.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// WithError returns a derived Logger carrying err as a structured field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{z: l.z.With(zap.Error(err))}
}

// WithAgent returns a derived Logger tagged with the given agent id.
func (l *Logger) WithAgent(agent string) *Logger {
	return &Logger{z: l.z.With(zap.String("agent", agent))}
}

// WithSession returns a derived Logger tagged with the given session id.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{z: l.z.With(zap.String("sessionId", sessionID))}
}

type ctxKey struct{}

// WithContext stores l in ctx for retrieval by FromContext.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves a Logger stored in ctx, or Default() if none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.z.Fatal(msg, fields...) }
