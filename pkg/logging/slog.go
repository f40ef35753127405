package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	SetOutput(os.Stderr)
}

// Op returns the operational logger used by the synthesis pipeline and the
// command line tool.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetOutput redirects the operational logger to w, keeping the level.
func SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	opLogger.Store(slog.New(handler))
}

// SetLevel changes the log level for the operational logger.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// Level returns the current level of the operational logger.
func Level() slog.Level {
	return logLevel.Level()
}

// ParseLevel maps "debug", "info", "warn" (or "warning") and "error",
// in any case, to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// SetLevelFromString sets the log level from a string. Unknown values leave
// the level unchanged.
func SetLevelFromString(level string) {
	if l, err := ParseLevel(level); err == nil {
		logLevel.Set(l)
	}
}
