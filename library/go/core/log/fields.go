package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a single strongly-typed key/value pair attached to a log message.
type Field = zap.Field

func String(key, value string) Field {
	return zap.String(key, value)
}

func Strings(key string, value []string) Field {
	return zap.Strings(key, value)
}

func Bool(key string, value bool) Field {
	return zap.Bool(key, value)
}

func ByteString(key string, value []byte) Field {
	return zap.ByteString(key, value)
}

func Int(key string, value int) Field {
	return zap.Int(key, value)
}

func Int32(key string, value int32) Field {
	return zap.Int32(key, value)
}

func Int64(key string, value int64) Field {
	return zap.Int64(key, value)
}

func UInt32(key string, value uint32) Field {
	return zap.Uint32(key, value)
}

func UInt64(key string, value uint64) Field {
	return zap.Uint64(key, value)
}

func Float64(key string, value float64) Field {
	return zap.Float64(key, value)
}

func Time(key string, value time.Time) Field {
	return zap.Time(key, value)
}

func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

func Any(key string, value interface{}) Field {
	return zap.Any(key, value)
}

func Error(err error) Field {
	return zap.Error(err)
}

func NamedError(key string, err error) Field {
	return zap.NamedError(key, err)
}

func Stringer(key string, value fmt.Stringer) Field {
	return zap.Stringer(key, value)
}

func Sprintf(key, format string, args ...interface{}) Field {
	return zap.String(key, fmt.Sprintf(format, args...))
}

func Array(key string, value zapcore.ArrayMarshaler) Field {
	return zap.Array(key, value)
}
