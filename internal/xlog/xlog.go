// Package xlog is the shared leveled logger for the allocator packages.
//
// The teacher repo hand-rolled a Debug/Info/Error/Fatal wrapper per package
// over the standard log.Logger. This module keeps the same four-function
// surface but backs it with zap, and centralizes it so buddy, slab, objpool
// and rpc all log through one sink instead of each carrying its own copy.
package xlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	sugar = l.Sugar()
}

// SetLevel adjusts the minimum level logged. Useful for cmd/slabbench's -v flag.
func SetLevel(lvl zapcore.Level) {
	level.SetLevel(lvl)
}

// The well-known levels re-exported so callers don't need a zapcore import.
const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelError = zapcore.ErrorLevel
)

// Debug logs debug information.
func Debug(format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Debugf(format, v...)
}

// Info logs informational messages.
func Info(format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Infof(format, v...)
}

// Error logs error information.
func Error(format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Errorf(format, v...)
}

// Fatal logs a fatal error and exits the process.
func Fatal(format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Fatalf(format, v...)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = sugar.Sync()
}
