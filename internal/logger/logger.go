// Package logger provides a zap-backed logging facade for the application.
//
// Initialize must be called once at startup; before that, calls fall back to
// a no-op logger so library code can log unconditionally. Structured JSON
// output is the default; setting UNSTRUCTURED_LOGS=true switches to a
// human-readable console encoder for local runs.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger = zap.NewNop().Sugar()

// Initialize configures the global logger. debug enables debug-level output
// and caller annotation.
func Initialize(debug bool) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	var cfg zap.Config
	if unstructuredLogs() {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	built, err := cfg.Build()
	if err != nil {
		// Logging must never take the process down; keep the no-op logger.
		return
	}
	log = built.Sugar()
}

func unstructuredLogs() bool {
	return strings.EqualFold(os.Getenv("UNSTRUCTURED_LOGS"), "true")
}

// Sync flushes buffered log entries. Best effort; safe to defer from main.
func Sync() {
	_ = log.Sync()
}

// Debug logs at debug level.
func Debug(args ...any) { log.Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { log.Debugf(format, args...) }

// Debugw logs a message with key-value pairs at debug level.
func Debugw(msg string, keysAndValues ...any) { log.Debugw(msg, keysAndValues...) }

// Info logs at info level.
func Info(args ...any) { log.Info(args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { log.Infof(format, args...) }

// Infow logs a message with key-value pairs at info level.
func Infow(msg string, keysAndValues ...any) { log.Infow(msg, keysAndValues...) }

// Warn logs at warn level.
func Warn(args ...any) { log.Warn(args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { log.Warnf(format, args...) }

// Warnw logs a message with key-value pairs at warn level.
func Warnw(msg string, keysAndValues ...any) { log.Warnw(msg, keysAndValues...) }

// Error logs at error level.
func Error(args ...any) { log.Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { log.Errorf(format, args...) }

// Errorw logs a message with key-value pairs at error level.
func Errorw(msg string, keysAndValues ...any) { log.Errorw(msg, keysAndValues...) }

// Fatalf logs a formatted message at fatal level and exits.
func Fatalf(format string, args ...any) { log.Fatalf(format, args...) }
