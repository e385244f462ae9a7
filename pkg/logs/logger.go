package logs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsandov/botpress-simulator/pkg/env"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *Logger
	mu           sync.RWMutex
)

type Logger struct {
	zap     *zap.Logger
	appName string
}

type Options struct {
	AppName string
	Level   string
	// Plain writes only the message and its fields, with no time, level or
	// caller. Used by command line tools whose output is read by people.
	Plain bool
}

// NewLogger builds a logger writing to the current os.Stdout and os.Stderr
// and installs it as the global one, replacing any earlier logger. Entries
// below error level go to stdout, error and above to stderr.
func NewLogger(o Options, opts ...zap.Option) *Logger {
	l := build(o, opts...)
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	zap.ReplaceGlobals(l.zap)
	return l
}

func build(o Options, opts ...zap.Option) *Logger {
	core := newCore(o, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
	opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	return &Logger{zap: zap.New(core, opts...), appName: o.AppName}
}

func newCore(o Options, stdout, stderr zapcore.WriteSyncer) zapcore.Core {
	level := ParseLevel(o.Level)

	var encoder zapcore.Encoder
	switch {
	case o.Plain:
		encoder = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey: "msg",
			LineEnding: zapcore.DefaultLineEnding,
		})
	case env.IsRemote():
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	default:
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l >= zapcore.ErrorLevel
	})
	return zapcore.NewTee(
		zapcore.NewCore(encoder, stdout, low),
		zapcore.NewCore(encoder, stderr, high),
	)
}

// New wraps an existing zap logger. Mostly useful in tests with zaptest/observer.
func New(z *zap.Logger) *Logger {
	return &Logger{zap: z}
}

// GetLogger returns the global logger, building one from APP_NAME and
// LOG_LEVEL when none was installed yet.
func GetLogger() *Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		globalLogger = build(Options{AppName: os.Getenv("APP_NAME"), Level: os.Getenv("LOG_LEVEL")})
	}
	return globalLogger
}

// SetLogger replaces the global logger and returns a func restoring the previous one.
func SetLogger(l *Logger) func() {
	prev := GetLogger()
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return func() {
		mu.Lock()
		globalLogger = prev
		mu.Unlock()
	}
}

func ParseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil || s == "" {
		return zapcore.InfoLevel
	}
	return level
}

// CapLevel returns s, or max when s parses to a level above max. Command line
// tools use it so their result line survives a quieter LOG_LEVEL.
func CapLevel(s string, max zapcore.Level) string {
	if ParseLevel(s) > max {
		return max.String()
	}
	return s
}

func Info(ctx context.Context, msg string, fields ...any) {
	GetLogger().Info(ctx, msg, fields...)
}
func Warn(ctx context.Context, msg string, fields ...any) {
	GetLogger().Warn(ctx, msg, fields...)
}
func Error(ctx context.Context, msg string, fields ...any) {
	GetLogger().Error(ctx, msg, fields...)
}
func Debug(ctx context.Context, msg string, fields ...any) {
	GetLogger().Debug(ctx, msg, fields...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.InfoLevel, msg, fields...)
}
func (l *Logger) Warn(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.WarnLevel, msg, fields...)
}
func (l *Logger) Error(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields...)
}
func (l *Logger) Debug(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.DebugLevel, msg, fields...)
}

func (l *Logger) log(_ context.Context, level zapcore.Level, msg string, fields ...any) {
	if ce := l.zap.Check(level, l.prefix(msg)); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func (l *Logger) prefix(msg string) string {
	if l.appName != "" {
		return "[" + l.appName + "] " + msg
	}
	return msg
}

// toZapFields accepts zap fields and loose key/value pairs in any mix. A key
// with no value is kept under "orphanKey".
func toZapFields(items []any) []zap.Field {
	var out []zap.Field
	for i := 0; i < len(items); i++ {
		switch v := items[i].(type) {
		case zap.Field:
			out = append(out, v)
		case []zap.Field:
			out = append(out, v...)
		case error:
			out = append(out, zap.Error(v))
		case string:
			if i+1 >= len(items) {
				out = append(out, zap.String("orphanKey", v))
				continue
			}
			out = append(out, zap.Any(v, items[i+1]))
			i++
		default:
			out = append(out, zap.Any(fmt.Sprintf("field%d", i), v))
		}
	}
	return out
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func Sync() {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
