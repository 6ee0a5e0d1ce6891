package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog logger at the named level. Unknown level names fall
// back to info so a typo in LOG_LEVEL never silences the process.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
