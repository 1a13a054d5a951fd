package telemetry

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(build(zapcore.AddSync(os.Stdout), levelFor(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))))
}

// Init rebuilds the process logger for the given environment. LOG_LEVEL wins
// over the environment default when set.
func Init(env, level string) {
	swap(build(zapcore.AddSync(os.Stdout), levelFor(env, level)))
}

// SetOutput redirects log lines to w and returns a func restoring the
// previous logger.
func SetOutput(w io.Writer) (restore func()) {
	prev := current.Load()
	current.Store(build(zapcore.AddSync(w), zapcore.DebugLevel))
	return func() { current.Store(prev) }
}

// Logger exposes the underlying zap logger for callers that need it.
func Logger() *zap.Logger {
	return current.Load()
}

// Sync flushes buffered entries.
func Sync() {
	_ = current.Load().Sync()
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	current.Load().Debug(msg, toZap(fields)...)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	current.Load().Info(msg, toZap(fields)...)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	current.Load().Warn(msg, toZap(fields)...)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	current.Load().Error(msg, toZap(fields)...)
}

func swap(l *zap.Logger) {
	if prev := current.Swap(l); prev != nil {
		_ = prev.Sync()
	}
}

func build(ws zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.LevelKey = "level"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(ws), level)
	return zap.New(core)
}

func levelFor(env, raw string) zapcore.Level {
	if raw = strings.TrimSpace(raw); raw != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err == nil {
			return lvl
		}
	}
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging":
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.String(k, err.Error()))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
