// Package logging provides a thin wrapper around logr.Logger with the
// convenience helpers keron's components use, backed by zap.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Logger wraps logr.Logger with Info/Debug/Error helpers.
type Logger struct {
	log logr.Logger
}

// New returns a Logger based on the provided logr.Logger, falling back to
// the module default if base is uninitialized.
func New(base logr.Logger) Logger {
	if base.GetSink() == nil {
		base = Default(false)
	}
	return Logger{log: base}
}

// Default returns keron's default structured logger. verbose raises the
// zap level so Debug-tier messages (bound to V(1)) are emitted.
func Default(verbose bool) logr.Logger {
	var zapLogger *zap.Logger
	var err error
	if verbose {
		zapLogger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.DisableStacktrace = true
		zapLogger, err = cfg.Build()
	}
	if err != nil {
		zapLogger = zap.NewNop()
	}
	return zapr.NewLogger(zapLogger)
}

// WithValues returns a new Logger with additional key-value pairs attached.
func (l Logger) WithValues(keysAndValues ...any) Logger {
	return Logger{log: l.log.WithValues(keysAndValues...)}
}

// WithName scopes the logger with the supplied name.
func (l Logger) WithName(name string) Logger {
	return Logger{log: l.log.WithName(name)}
}

// Info logs an informational message. When quiet is requested by the CLI
// (--no-hints), callers should prefer Debug for non-essential lines.
func (l Logger) Info(msg string, keysAndValues ...any) {
	l.log.Info(msg, keysAndValues...)
}

// Debug logs a verbose message, gated on V(1) being enabled.
func (l Logger) Debug(msg string, keysAndValues ...any) {
	if l.log.V(1).Enabled() {
		l.log.V(1).Info(msg, keysAndValues...)
	}
}

// Error logs an error message.
func (l Logger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(err, msg, keysAndValues...)
}

// Logr exposes the underlying logr.Logger.
func (l Logger) Logr() logr.Logger {
	return l.log
}
