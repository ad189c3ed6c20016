package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger

// Init initializes the global logger at Info level. Sink and level may be
// overridden via TRADEPOST_LOG_SINK (e.g. "file:/path/to/log") and
// TRADEPOST_LOG_LEVEL.
func Init() {
	InitWithLevel("")
}

// InitWithLevel initializes the global logger honoring the provided level
// string ("debug", "info", "warn", "error"). An empty level falls back to
// the TRADEPOST_LOG_LEVEL environment variable, then to Info.
func InitWithLevel(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("TRADEPOST_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stdout)
	if s := os.Getenv("TRADEPOST_LOG_SINK"); strings.HasPrefix(s, "file:") {
		path := strings.TrimPrefix(s, "file:")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640); err == nil {
			sink = zapcore.Lock(f)
		} else {
			// fallback to stdout
			os.Stderr.WriteString("failed to open log file " + path + ": " + err.Error() + "\n")
		}
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, zl)
	log = zap.New(core).Sugar()
}

func ensure() *zap.SugaredLogger {
	if log == nil {
		Init()
	}
	return log
}

// Debug logs an event name followed by alternating key/value pairs.
func Debug(msg string, kv ...interface{}) { ensure().Debugw(msg, kv...) }

// Info logs an event name followed by alternating key/value pairs.
func Info(msg string, kv ...interface{}) { ensure().Infow(msg, kv...) }

// Warn logs an event name followed by alternating key/value pairs.
func Warn(msg string, kv ...interface{}) { ensure().Warnw(msg, kv...) }

// Error logs an event name followed by alternating key/value pairs.
func Error(msg string, kv ...interface{}) { ensure().Errorw(msg, kv...) }

// Sync flushes buffered log entries; safe to call on shutdown.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
