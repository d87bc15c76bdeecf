package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
	mu         sync.Mutex
	minLevel   = new(slog.LevelVar)
)

// initLogger initializes the global logger to write colored records to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		minLevel.Set(slog.LevelInfo)
		logger = newLogger(os.Stderr, false)
	})
}

func newLogger(w io.Writer, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      minLevel,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}))
}

// SetOutput redirects log output, mostly for tests. Colors are disabled
// unless w is the process stderr.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, w != os.Stderr)
}

func SetLevel(l Level) {
	initLogger()
	minLevel.Set(l.slog())
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown or empty values map to LevelInfo.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()
	mu.Lock()
	l := logger
	mu.Unlock()

	// Odd trailing values are dropped rather than rendered as !BADKEY.
	if len(kv)%2 == 1 {
		kv = kv[:len(kv)-1]
	}
	l.Log(context.Background(), level.slog(), msg, kv...)
}
