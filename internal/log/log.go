// Package log provides the process-wide structured logger.
//
// All logging goes through context-aware functions so correlation
// identifiers (trace ID, request ID, chat ID) travel with the entry.
package log

import (
	"context"
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalLogger = New(Config{})
)

// SetGlobalConfig replaces the global logger with one built from cfg.
func SetGlobalConfig(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	globalLogger = New(cfg)
}

// GetGlobalLogger returns the current global logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	return globalLogger
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Error(ctx, msg, fields...)
}

// DebugEnabled reports whether the global logger emits debug entries.
func DebugEnabled(ctx context.Context) bool {
	return GetGlobalLogger().DebugEnabled(ctx)
}
