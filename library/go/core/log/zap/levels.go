package zap

import (
	"go.uber.org/zap/zapcore"

	"github.com/tracelight/callscope/library/go/core/log"
)

// ZapifyLevel converts a log level to the corresponding zap level.
func ZapifyLevel(level log.Level) zapcore.Level {
	switch level {
	case log.TraceLevel, log.DebugLevel:
		return zapcore.DebugLevel
	case log.InfoLevel:
		return zapcore.InfoLevel
	case log.WarnLevel:
		return zapcore.WarnLevel
	case log.ErrorLevel:
		return zapcore.ErrorLevel
	case log.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// UnzapifyLevel converts a zap level to the corresponding log level.
func UnzapifyLevel(level zapcore.Level) log.Level {
	switch level {
	case zapcore.DebugLevel:
		return log.DebugLevel
	case zapcore.InfoLevel:
		return log.InfoLevel
	case zapcore.WarnLevel:
		return log.WarnLevel
	case zapcore.ErrorLevel:
		return log.ErrorLevel
	case zapcore.FatalLevel, zapcore.DPanicLevel, zapcore.PanicLevel:
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}
