// Package logging configures the process-wide structured logger. Every
// long-running component takes a *slog.Logger by parameter rather than
// reaching for a package-level default, matching the teacher's convention
// of threading a *slog.Logger through daemon loops (cmd/bd/daemon_event_loop.go).
package logging

import (
	"log/slog"
	"os"
)

// New builds a JSON-handler logger at the given level, suitable for both
// interactive and daemon-mode use. level is one of "debug", "info", "warn",
// "error"; unrecognized values fall back to "info".
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
