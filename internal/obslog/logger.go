// Package obslog provides the structured logging interface shared by every
// component, plus a zap-backed production implementation.
package obslog

import (
	"go.uber.org/zap"
)

// Logger is the narrow logging surface every component depends on. Messages
// are a short description; kv is an alternating key/value list, mirroring
// the structured-logging convention used throughout the codebase.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NoOpLogger discards everything. Safe zero value for tests and for callers
// that don't want logging.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// ZapLogger adapts *zap.SugaredLogger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger (JSON encoding, info level).
func NewZapLogger() (*ZapLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: l.Sugar()}, nil
}

// NewZapLoggerFrom wraps an existing zap logger, useful for tests that want
// zaptest.NewLogger.
func NewZapLoggerFrom(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

func (z *ZapLogger) Debug(msg string, kv ...any) { z.sugar.Debugw(msg, kv...) }
func (z *ZapLogger) Info(msg string, kv ...any)  { z.sugar.Infow(msg, kv...) }
func (z *ZapLogger) Warn(msg string, kv ...any)  { z.sugar.Warnw(msg, kv...) }
func (z *ZapLogger) Error(msg string, kv ...any) { z.sugar.Errorw(msg, kv...) }

// Sync flushes any buffered log entries. Call before process exit.
func (z *ZapLogger) Sync() error { return z.sugar.Sync() }

// Default returns a NoOpLogger if l is nil, otherwise l itself.
func Default(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
