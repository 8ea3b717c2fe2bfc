package log

import (
	"fmt"
	"strings"
)

// Level of a log message.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

const DefaultLevel = InfoLevel

func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// ParseLevel parses a log level from its string representation.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return DefaultLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Levels lists the canonical names of all log levels, in severity order.
func Levels() []string {
	return []string{"trace", "debug", "info", "warn", "error", "fatal"}
}
