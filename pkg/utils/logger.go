package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
	loggerMu   sync.RWMutex
)

// InitLogger installs the process-wide logger writing colored output to stderr.
// An empty level falls back to info.
func InitLogger(level ...string) *slog.Logger {
	lvl := slog.LevelInfo
	if len(level) > 0 && level[0] != "" {
		lvl = ParseLogLevel(level[0])
	}
	l := NewLogger(os.Stderr, lvl)
	SetLogger(l)
	return l
}

// NewLogger builds a tint-backed slog logger.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}))
}

// SetLogger replaces the process-wide logger.
func SetLogger(l *slog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	slog.SetDefault(l)
}

// GetLogger returns the process-wide logger, creating a default one on first use.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		if logger == nil {
			logger = NewLogger(os.Stderr, slog.LevelInfo)
		}
		loggerMu.Unlock()
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// ParseLogLevel converts a string log level to slog.Level.
func ParseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
