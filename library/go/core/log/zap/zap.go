package zap

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tracelight/callscope/library/go/core/log"
)

// Logger implements log.Logger on top of an underlying *zap.Logger.
type Logger struct {
	L *zap.Logger
}

var (
	_ log.Logger              = (*Logger)(nil)
	_ log.Structured          = (*Logger)(nil)
	_ log.Fmt                 = (*Logger)(nil)
	_ log.LoggerWith          = (*Logger)(nil)
	_ log.LoggerAddCallerSkip = (*Logger)(nil)
)

// New constructs a logger from the provided zap config.
func New(cfg zap.Config) (*Logger, error) {
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{L: zl}, nil
}

// NewWithCore constructs a logger from the provided zap core.
func NewWithCore(core zapcore.Core, options ...zap.Option) *Logger {
	options = append(options, zap.AddCallerSkip(1))
	return &Logger{L: zap.New(core, options...)}
}

// Must is like New, but panics on configuration errors.
func Must(cfg zap.Config) *Logger {
	l, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to construct zap logger: %v", err))
	}
	return l
}

func (l *Logger) WithName(name string) log.Logger {
	if name == "" {
		return l
	}
	return &Logger{L: l.L.Named(name)}
}

func (l *Logger) With(fields ...log.Field) log.Logger {
	return &Logger{L: l.L.With(fields...)}
}

func (l *Logger) AddCallerSkip(skip int) log.Logger {
	return &Logger{L: l.L.WithOptions(zap.AddCallerSkip(skip))}
}

func (l *Logger) Logger() log.Logger {
	return l
}

func (l *Logger) Structured() log.Structured {
	return l
}

func (l *Logger) Fmt() log.Fmt {
	return l
}

// Trace logs at the trace level. Zap has no level below debug, so trace
// messages are emitted as debug.
func (l *Logger) Trace(msg string, fields ...log.Field) {
	if ce := l.L.Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *Logger) Debug(msg string, fields ...log.Field) {
	l.L.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...log.Field) {
	l.L.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...log.Field) {
	l.L.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...log.Field) {
	l.L.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...log.Field) {
	l.L.Fatal(msg, fields...)
}

func (l *Logger) Tracef(format string, args ...interface{}) {
	l.L.Sugar().Debugf(format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.L.Sugar().Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.L.Sugar().Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.L.Sugar().Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.L.Sugar().Errorf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.L.Sugar().Fatalf(format, args...)
}
