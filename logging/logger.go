// Package logging carries a structured logger through context.Context so that
// the session store, API client and screen controllers log with the scope of
// whoever invoked them.
package logging

import "context"

type ctxkey struct {
	logger Logger
}

// With attaches a logger to the context.
//
// This can be used to create logging scopes like so:
//
//	for _, d := range dates {
//	  ctx := With(ctx, logger.Named(d))
//	  toggle(ctx, d)
//	}
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxkey{}, &ctxkey{
		logger: logger,
	})
}

// FromContext returns a scoped logger. If no logger has been attached a no-op
// logger is returned, so callers never need to nil check.
func FromContext(ctx context.Context) Logger {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		return c.logger
	}
	return nopLogger
}

// EnsureLogger returns a context with a logger attached, adding a development
// logger if the context doesn't already carry one.
func EnsureLogger(ctx context.Context) context.Context {
	return WithDefault(ctx, NewDevLogger())
}

// WithDefault attaches l unless the context already carries a logger.
func WithDefault(ctx context.Context, l Logger) context.Context {
	if _, ok := ctx.Value(ctxkey{}).(*ctxkey); ok {
		return ctx
	}
	return With(ctx, l)
}

// Track a field across the lifetime of the context. Tracked values persist
// back up the call-chain to whoever created the scope. As such, do not use
// this as a convenience in loops without creating a new scope using
// `logging.With(ctx, logger.Named("foo"))`.
func Track(ctx context.Context, field string, value interface{}) {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		c.logger = c.logger.With(field, value)
	}
}

// Logger provides an abstract logging interface designed around uber-go/zap's
// sugared logger.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Debugf(msg string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Infof(msg string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Warnf(msg string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Errorf(msg string, args ...interface{})

	// Named creates a child logger with the given name.
	Named(name string) Logger

	// With creates a child logger and attaches structured context to it.
	With(field string, value interface{}) Logger

	// Sync flushes buffered entries.
	Sync() error
}

func Debugw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Debugw(msg, fields...)
}

func Debugf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Debugf(msg, args...)
}

func Infow(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Infow(msg, fields...)
}

func Infof(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Infof(msg, args...)
}

func Warnw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Warnw(msg, fields...)
}

func Warnf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Warnf(msg, args...)
}

func Errorw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Errorw(msg, fields...)
}

func Errorf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Errorf(msg, args...)
}
