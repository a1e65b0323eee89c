package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a leveled, context-aware logger backed by zap.
//
// Context hooks registered via AddHook run on every entry, so correlation
// identifiers carried in the context end up in the output without every
// call site having to repeat them.
type Logger struct {
	core  *zap.Logger
	level zap.AtomicLevel

	mu    sync.RWMutex
	hooks []Hook
}

// New builds a Logger from the config. Invalid settings fall back to the
// defaults instead of failing, logging must never take the process down.
func New(cfg Config) *Logger {
	cfg = cfg.withDefaults()

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level.SetLevel(parsed)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder

	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer

	switch cfg.Output {
	case "file":
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		})
	case "stdout":
		sink = zapcore.Lock(os.Stdout)
	default:
		sink = zapcore.Lock(os.Stderr)
	}

	core := zap.New(
		zapcore.NewCore(encoder, sink, level),
		zap.AddStacktrace(zapcore.ErrorLevel),
	).Named(cfg.Name)

	return &Logger{
		core:  core,
		level: level,
	}
}

// AddHook registers a context hook. Hooks run in registration order.
func (l *Logger) AddHook(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, hook)
}

// With returns a child logger that attaches the fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	return &Logger{
		core:  l.core.With(fields...),
		level: l.level,
		hooks: hooks,
	}
}

// Named returns a child logger with the name segment appended.
func (l *Logger) Named(name string) *Logger {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	return &Logger{
		core:  l.core.Named(name),
		level: l.level,
		hooks: hooks,
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, zapcore.ErrorLevel, msg, fields)
}

// DebugEnabled reports whether debug entries are currently emitted. Guards
// call sites that build expensive fields.
func (l *Logger) DebugEnabled(ctx context.Context) bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.core.Sync()
}

func (l *Logger) write(ctx context.Context, level zapcore.Level, msg string, fields []Field) {
	entry := l.core.Check(level, msg)
	if entry == nil {
		return
	}

	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, hook := range hooks {
		fields = hook.Apply(ctx, msg, fields...)
	}

	entry.Write(fields...)
}
