package log

// Logger is the universal logger that can do everything.
type Logger interface {
	structuredLogger
	fmtLogger
	toStructured
	toFmt

	WithName(name string) Logger
}

// Structured provides interface for logging using fields.
type Structured interface {
	structuredLogger
	toLogger
}

// Fmt provides interface for logging using fmt formatter.
type Fmt interface {
	fmtLogger
	toLogger
}

type structuredLogger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
}

type fmtLogger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

type toLogger interface {
	// Logger returns the general logger.
	Logger() Logger
}

type toStructured interface {
	// Structured returns the logger that encourages structured logging.
	Structured() Structured
}

type toFmt interface {
	// Fmt returns the logger that encourages fmt-style logging.
	Fmt() Fmt
}

// LoggerWith is an optional interface for loggers that support binding
// a set of fields to every subsequent log entry.
type LoggerWith interface {
	With(fields ...Field) Logger
}

// With returns a logger that adds the given fields to every log entry, if the
// implementation supports it. Otherwise the logger is returned unchanged.
func With(l Logger, fields ...Field) Logger {
	e, ok := l.(LoggerWith)
	if !ok {
		return l
	}
	return e.With(fields...)
}

// LoggerAddCallerSkip is an optional interface for loggers that support
// skipping stack frames when resolving the caller annotation.
type LoggerAddCallerSkip interface {
	AddCallerSkip(skip int) Logger
}

// AddCallerSkip returns a logger that skips the given number of extra stack
// frames, if the implementation supports it. Otherwise the logger is returned
// unchanged.
func AddCallerSkip(l Logger, skip int) Logger {
	e, ok := l.(LoggerAddCallerSkip)
	if !ok {
		return l
	}
	return e.AddCallerSkip(skip)
}
