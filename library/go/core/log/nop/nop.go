package nop

import (
	"github.com/tracelight/callscope/library/go/core/log"
)

// Logger that discards everything.
type Logger struct{}

var (
	_ log.Logger     = (*Logger)(nil)
	_ log.Structured = (*Logger)(nil)
	_ log.Fmt        = (*Logger)(nil)
)

func (l *Logger) WithName(name string) log.Logger { return l }

func (l *Logger) Logger() log.Logger { return l }

func (l *Logger) Structured() log.Structured { return l }

func (l *Logger) Fmt() log.Fmt { return l }

func (l *Logger) Trace(msg string, fields ...log.Field) {}
func (l *Logger) Debug(msg string, fields ...log.Field) {}
func (l *Logger) Info(msg string, fields ...log.Field)  {}
func (l *Logger) Warn(msg string, fields ...log.Field)  {}
func (l *Logger) Error(msg string, fields ...log.Field) {}
func (l *Logger) Fatal(msg string, fields ...log.Field) {}

func (l *Logger) Tracef(format string, args ...interface{}) {}
func (l *Logger) Debugf(format string, args ...interface{}) {}
func (l *Logger) Infof(format string, args ...interface{})  {}
func (l *Logger) Warnf(format string, args ...interface{})  {}
func (l *Logger) Errorf(format string, args ...interface{}) {}
func (l *Logger) Fatalf(format string, args ...interface{}) {}
