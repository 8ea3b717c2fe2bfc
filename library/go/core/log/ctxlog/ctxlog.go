package ctxlog

import (
	"context"

	"github.com/tracelight/callscope/library/go/core/log"
)

type ctxKey struct{}

// ContextFields returns the log fields bound to the context, if any.
func ContextFields(ctx context.Context) []log.Field {
	fs, _ := ctx.Value(ctxKey{}).([]log.Field)
	return fs
}

// WithFields returns a new context carrying the given log fields in addition
// to any fields already bound to ctx.
func WithFields(ctx context.Context, fields ...log.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, mergeFields(ContextFields(ctx), fields))
}

func mergeFields(a, b []log.Field) []log.Field {
	c := make([]log.Field, len(a)+len(b))
	copy(c, a)
	copy(c[len(a):], b)
	return c
}

// Trace logs at the trace level with fields from both the arguments and the context.
func Trace(ctx context.Context, l log.Logger, msg string, fields ...log.Field) {
	log.AddCallerSkip(l, 1).Trace(msg, mergeFields(ContextFields(ctx), fields)...)
}

// Debug logs at the debug level with fields from both the arguments and the context.
func Debug(ctx context.Context, l log.Logger, msg string, fields ...log.Field) {
	log.AddCallerSkip(l, 1).Debug(msg, mergeFields(ContextFields(ctx), fields)...)
}

// Info logs at the info level with fields from both the arguments and the context.
func Info(ctx context.Context, l log.Logger, msg string, fields ...log.Field) {
	log.AddCallerSkip(l, 1).Info(msg, mergeFields(ContextFields(ctx), fields)...)
}

// Warn logs at the warn level with fields from both the arguments and the context.
func Warn(ctx context.Context, l log.Logger, msg string, fields ...log.Field) {
	log.AddCallerSkip(l, 1).Warn(msg, mergeFields(ContextFields(ctx), fields)...)
}

// Error logs at the error level with fields from both the arguments and the context.
func Error(ctx context.Context, l log.Logger, msg string, fields ...log.Field) {
	log.AddCallerSkip(l, 1).Error(msg, mergeFields(ContextFields(ctx), fields)...)
}

// Fatal logs at the fatal level with fields from both the arguments and the context.
func Fatal(ctx context.Context, l log.Logger, msg string, fields ...log.Field) {
	log.AddCallerSkip(l, 1).Fatal(msg, mergeFields(ContextFields(ctx), fields)...)
}
